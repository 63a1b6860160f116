package apu

import (
	"gbapu/emu/log"
	"gbapu/hw/hwdefs"
	"gbapu/hw/hwio"
)

// waveChannel plays back the 32 4-bit samples stored in wave RAM ($FF30-$FF3F),
// high nibble first.
type waveChannel struct {
	apu *APU

	out    channelOutput
	timer  timer
	length lengthCounter

	enabled bool
	dacOn   bool

	freq   uint16
	shift  uint8
	pos    uint8
	sample uint8 // last sample read from wave RAM

	Enable hwio.Reg8 `hwio:"offset=0x0,reset=0x7F,wcb"`
	Length hwio.Reg8 `hwio:"offset=0x1,reset=0xFF,wcb"`
	Level  hwio.Reg8 `hwio:"offset=0x2,reset=0x9F,wcb"`
	FreqLo hwio.Reg8 `hwio:"offset=0x3,reset=0xFF,wcb"`
	FreqHi hwio.Reg8 `hwio:"offset=0x4,reset=0x3F,wcb"`
	RAM    hwio.Mem  `hwio:"offset=0x16,size=0x10"`
}

func newWaveChannel(apu *APU) waveChannel {
	return waveChannel{
		apu:    apu,
		length: lengthCounter{max: 256},
	}
}

// NR32 output level to right shift: mute, 100%, 50%, 25%.
var waveShift = [4]uint8{4, 0, 1, 2}

// NR30
func (wc *waveChannel) WriteENABLE(_, val uint8) {
	wc.dacOn = hwio.GetBit8(val, 7)
	if !wc.dacOn {
		wc.enabled = false
	}
	wc.updateOutput(wc.apu.lastTime)

	log.ModSound.InfoZ("write wave enable").Bool("dac", wc.dacOn).End()
}

// NR31
func (wc *waveChannel) WriteLENGTH(_, val uint8) {
	wc.length.load(val)
}

// NR32
func (wc *waveChannel) WriteLEVEL(_, val uint8) {
	wc.shift = waveShift[(val>>5)&0x03]
	wc.updateOutput(wc.apu.lastTime)

	log.ModSound.InfoZ("write wave level").Uint8("shift", wc.shift).End()
}

// NR33
func (wc *waveChannel) WriteFREQLO(_, val uint8) {
	wc.setFreq(wc.freq&0x700 | uint16(val))
}

// NR34
func (wc *waveChannel) WriteFREQHI(_, val uint8) {
	wc.setFreq(wc.freq&0xFF | uint16(val&0x07)<<8)

	trigger := hwio.GetBit8(val, 7)
	if wc.length.writeControl(hwio.GetBit8(val, 6), trigger, wc.apu.seq.lengthFirstHalf()) {
		wc.enabled = false
	}
	if trigger {
		wc.enabled = wc.dacOn
		wc.pos = 0
		wc.timer.restart()
	}
	wc.updateOutput(wc.apu.lastTime)

	log.ModSound.InfoZ("write wave freq hi").
		Hex8("reg", val).
		Uint16("freq", wc.freq).
		Bool("trigger", trigger).
		End()
}

func (wc *waveChannel) setFreq(freq uint16) {
	wc.freq = freq
	wc.timer.period = (2048 - uint32(freq)) * 2
}

// nibble returns the 4-bit sample at position pos (0-31).
func (wc *waveChannel) nibble(pos uint8) uint8 {
	b := wc.RAM.Data[pos>>1]
	if pos&1 == 0 {
		return b >> 4
	}
	return b & 0x0F
}

func (wc *waveChannel) updateOutput(time uint32) {
	var level int32
	if wc.enabled && wc.dacOn {
		level = 2*int32(wc.sample>>wc.shift) - int32(15>>wc.shift)
	}
	wc.out.setLevel(time, level)
}

func (wc *waveChannel) run(targetCycle uint32) {
	for wc.timer.run(targetCycle) {
		wc.pos = (wc.pos + 1) & 0x1F
		wc.sample = wc.nibble(wc.pos)
		wc.updateOutput(wc.timer.prevCycle)
	}
}

func (wc *waveChannel) tickLength(time uint32) {
	if wc.length.tick() {
		wc.enabled = false
		wc.updateOutput(time)
	}
}

func (wc *waveChannel) resetRegs() {
	wc.Enable.ResetValue()
	wc.Length.ResetValue()
	wc.Level.ResetValue()
	wc.FreqLo.ResetValue()
	wc.FreqHi.ResetValue()
}

func (wc *waveChannel) reset(time uint32) {
	wc.out.setLevel(time, 0)
	wc.timer.reset()
	wc.timer.prevCycle = time
	wc.length.reset()

	wc.enabled = false
	wc.dacOn = false
	wc.freq = 0
	wc.shift = waveShift[0]
	wc.pos = 0
	wc.sample = 0
	clear(wc.RAM.Data[:hwdefs.WaveRAMSize])
}
