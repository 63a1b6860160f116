package hwdefs

import "fmt"

const (
	ClockRate   = 4194304 // CPU clocks per second
	FrameClocks = 70224   // CPU clocks per video frame (~59.73Hz)
)

// Sound register addresses.
const (
	NR10 uint16 = 0xFF10 + iota
	NR11
	NR12
	NR13
	NR14
	_ // FF15
	NR21
	NR22
	NR23
	NR24
	NR30
	NR31
	NR32
	NR33
	NR34
	_ // FF1F
	NR41
	NR42
	NR43
	NR44
	NR50
	NR51
	NR52
)

const (
	RegStart uint16 = NR10
	RegEnd   uint16 = 0xFF3F // inclusive

	WaveRAM     uint16 = 0xFF30
	WaveRAMSize        = 16
)

const NumAudioChannels = 4 // Square1, Square2, Wave, Noise

var regNames = [...]string{
	"NR10", "NR11", "NR12", "NR13", "NR14", "",
	"NR21", "NR22", "NR23", "NR24",
	"NR30", "NR31", "NR32", "NR33", "NR34", "",
	"NR41", "NR42", "NR43", "NR44",
	"NR50", "NR51", "NR52",
}

// RegName returns the conventional name of the sound register at addr.
func RegName(addr uint16) string {
	if addr >= RegStart && int(addr-RegStart) < len(regNames) {
		if name := regNames[addr-RegStart]; name != "" {
			return name
		}
	}
	if addr >= WaveRAM && addr <= RegEnd {
		return fmt.Sprintf("WAVE%X", addr-WaveRAM)
	}
	return fmt.Sprintf("$%04X", addr)
}
