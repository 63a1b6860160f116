package apu

import (
	"gbapu/emu/log"
	"gbapu/hw/hwdefs"
	"gbapu/hw/hwio"
)

// Per channel amplitude of one volume step at full master volume, leaves
// headroom for 4 channels at volume 15 and NR50 at 7.
const ampUnit = 56

// APU is the Game Boy sound unit. It owns no audio storage: amplitude changes
// are sent, timestamped, to the outputs given to SetOutput.
type APU struct {
	Square1 squareChannel
	Square2 squareChannel
	Wave    waveChannel
	Noise   noiseChannel

	seq   frameSequencer
	table *hwio.Table

	lastTime uint32 // time everything has been run up to

	center, left, right Output

	Volume  hwio.Reg8 `hwio:"offset=0x14,reset=0x77,wcb"`            // NR50
	Panning hwio.Reg8 `hwio:"offset=0x15,reset=0xF3,wcb"`            // NR51
	Power   hwio.Reg8 `hwio:"offset=0x16,reset=0x80,rwmask=0x80,rcb"` // NR52
}

func New() *APU {
	a := &APU{}
	a.Square1 = newSquareChannel(a, Square1, true)
	a.Square2 = newSquareChannel(a, Square2, false)
	a.Wave = newWaveChannel(a)
	a.Noise = newNoiseChannel(a)

	hwio.MustInitRegs(a)
	hwio.MustInitRegs(&a.Square1)
	hwio.MustInitRegs(&a.Square2)
	hwio.MustInitRegs(&a.Wave)
	hwio.MustInitRegs(&a.Noise)

	a.table = hwio.NewTable("apu")
	a.table.Unmapped = openBus{}
	a.table.MapBank(0xFF10, &a.Square1, 0)
	a.table.MapBank(0xFF10, &a.Square1, 1)
	a.table.MapBank(0xFF15, &a.Square2, 0)
	a.table.MapBank(0xFF1A, &a.Wave, 0)
	a.table.MapBank(0xFF20, &a.Noise, 0)
	a.table.MapBank(0xFF10, a, 0)

	a.Reset()
	return a
}

// undefined offsets inside the sound range read back as 0xFF.
type openBus struct{}

func (openBus) Read8(uint16) uint8  { return 0xFF }
func (openBus) Peek8(uint16) uint8  { return 0xFF }
func (openBus) Write8(uint16, uint8) {}

// MaxTime bounds timestamps, relative to the frame start. Later write times
// and frame lengths are clamped to it.
const MaxTime = 2 * hwdefs.ClockRate

// bits that always read back as 1, for $FF10-$FF2F.
var readMasks = [0x20]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // FF15, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // FF1F, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // FF27-FF2F
}

// Reset puts the APU back in its power-up state: every channel silenced, the
// amplitude they emitted cancelled, and registers set to their power-up
// values (the register reset values, trigger bits cleared). Outputs stay
// connected.
func (a *APU) Reset() {
	now := a.lastTime
	a.Square1.reset(now)
	a.Square2.reset(now)
	a.Wave.reset(now)
	a.Noise.reset(now)
	a.seq.reset(now)

	a.Power.ResetValue()
	a.Square1.resetRegs()
	a.Square2.resetRegs()
	a.Wave.resetRegs()
	a.Noise.resetRegs()
	a.Volume.ResetValue()
	a.Panning.ResetValue()

	log.ModSound.InfoZ("reset").Uint32("time", now).End()
}

// SetOutput connects the three mix outputs. Channels are routed to center
// when enabled on both sides by NR51.
func (a *APU) SetOutput(center, left, right Output) {
	a.center, a.left, a.right = center, left, right
	a.updateRouting(a.lastTime)
}

func (a *APU) outputs() [hwdefs.NumAudioChannels]*channelOutput {
	return [...]*channelOutput{&a.Square1.out, &a.Square2.out, &a.Wave.out, &a.Noise.out}
}

func (a *APU) updateRouting(time uint32) {
	pan := a.Panning.Value
	for i, out := range a.outputs() {
		right := pan&(1<<i) != 0
		left := pan&(1<<(i+4)) != 0

		var target Output
		switch {
		case left && right:
			target = a.center
		case left:
			target = a.left
		case right:
			target = a.right
		}
		out.route(time, target)
	}
}

// NR50
func (a *APU) WriteVOLUME(_, val uint8) {
	vol := max(val&0x07, (val>>4)&0x07)
	gain := (int32(vol) + 1) * ampUnit
	for _, out := range a.outputs() {
		out.setGain(a.lastTime, gain)
	}

	log.ModSound.InfoZ("write master volume").Hex8("reg", val).Int32("gain", gain).End()
}

// NR51
func (a *APU) WritePANNING(_, val uint8) {
	a.updateRouting(a.lastTime)

	log.ModSound.InfoZ("write panning").Hex8("reg", val).End()
}

// NR52
func (a *APU) ReadPOWER(val uint8) uint8 {
	return val&0x80 | 0x70 | a.Status()
}

// Status returns the enabled flags of the 4 channels, as in NR52 low bits.
func (a *APU) Status() uint8 {
	return hwio.BoolToBit8(a.Square1.enabled, 0) |
		hwio.BoolToBit8(a.Square2.enabled, 1) |
		hwio.BoolToBit8(a.Wave.enabled, 2) |
		hwio.BoolToBit8(a.Noise.enabled, 3)
}

// Write runs the APU up to time and then writes val to the register at addr.
// Writes outside $FF10-$FF3F are ignored, and so are those to undefined
// offsets. A time earlier than the last write is treated as that time, one
// past MaxTime as MaxTime.
func (a *APU) Write(time uint32, addr uint16, val uint8) {
	if addr < hwdefs.RegStart || addr > hwdefs.RegEnd {
		log.ModSound.DebugZ("ignored write outside sound registers").
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	a.run(time)
	a.table.Write8(addr, val)
}

// ReadRegister runs the APU up to time and returns what the CPU would read
// at addr.
func (a *APU) ReadRegister(time uint32, addr uint16) uint8 {
	if addr < hwdefs.RegStart || addr > hwdefs.RegEnd {
		return 0xFF
	}
	a.run(time)
	val := a.table.Read8(addr)
	if addr < hwdefs.WaveRAM {
		val |= readMasks[addr-hwdefs.RegStart]
	}
	return val
}

// EndFrame runs the APU to frameClocks and starts a new frame there, so that
// time 0 of the next frame is frameClocks of this one. frameClocks is
// clamped to MaxTime.
func (a *APU) EndFrame(frameClocks uint32) {
	frameClocks = clampTime(frameClocks)
	a.run(frameClocks)

	// Writes past the end of the frame have run the APU further, what's
	// beyond the frame carries over.
	a.lastTime -= frameClocks
	a.Square1.timer.endFrame(frameClocks)
	a.Square2.timer.endFrame(frameClocks)
	a.Wave.timer.endFrame(frameClocks)
	a.Noise.timer.endFrame(frameClocks)
	a.seq.endFrame(frameClocks)
}

// clampTime bounds t to MaxTime. Since every time the APU runs to is
// bounded, timers and the frame sequencer never wrap around.
func clampTime(t uint32) uint32 {
	if t > MaxTime {
		log.ModSound.WarnZ("time too far in the future, clamped").
			Uint32("time", t).
			Uint32("max", MaxTime).
			End()
		return MaxTime
	}
	return t
}

func (a *APU) run(end uint32) {
	end = clampTime(end)
	if end <= a.lastTime {
		return
	}
	for a.seq.next <= end {
		a.runChannels(a.seq.next)
		a.seq.clock(a, a.seq.next)
	}
	a.runChannels(end)
	a.lastTime = end
}

func (a *APU) runChannels(end uint32) {
	a.Square1.run(end)
	a.Square2.run(end)
	a.Wave.run(end)
	a.Noise.run(end)
}

func (a *APU) tickLength(time uint32) {
	a.Square1.tickLength(time)
	a.Square2.tickLength(time)
	a.Wave.tickLength(time)
	a.Noise.tickLength(time)
}

func (a *APU) tickEnvelope(time uint32) {
	a.Square1.tickEnvelope(time)
	a.Square2.tickEnvelope(time)
	a.Noise.tickEnvelope(time)
}
