package apu

import (
	"gbapu/emu/log"
	"gbapu/hw/hwio"
)

// noiseChannel outputs the low bit of a linear feedback shift register,
// clocked at one of many frequencies.
//
//	      Timer --> Shift Register   Length Counter
//	                    |                |
//	                    v                v
//	Envelope -------> Gate ----------> Gate --> (to mixer)
type noiseChannel struct {
	apu *APU

	out      channelOutput
	timer    timer
	length   lengthCounter
	envelope envelope

	enabled bool
	dacOn   bool

	lfsr   uint16
	width7 bool // 7-bit LFSR mode

	Length   hwio.Reg8 `hwio:"offset=0x0,reset=0xFF,wcb"`
	Envelope hwio.Reg8 `hwio:"offset=0x1,wcb"`
	Poly     hwio.Reg8 `hwio:"offset=0x2,wcb"`
	Control  hwio.Reg8 `hwio:"offset=0x3,reset=0x3F,wcb"`
}

func newNoiseChannel(apu *APU) noiseChannel {
	return noiseChannel{
		apu:    apu,
		length: lengthCounter{max: 64},
		lfsr:   0x7FFF,
	}
}

// NoiseDivisors maps the NR43 divisor code to the LFSR clock period, in
// clocks, before the shift is applied.
var NoiseDivisors = [8]uint32{8, 16, 32, 48, 64, 80, 96, 112}

// NR41
func (nc *noiseChannel) WriteLENGTH(_, val uint8) {
	nc.length.load(val & 0x3F)
}

// NR42
func (nc *noiseChannel) WriteENVELOPE(_, val uint8) {
	nc.dacOn = nc.envelope.write(val)
	if !nc.dacOn {
		nc.enabled = false
	}
	nc.updateOutput(nc.apu.lastTime)

	log.ModSound.InfoZ("write noise envelope").Hex8("reg", val).Bool("dac", nc.dacOn).End()
}

// NR43
func (nc *noiseChannel) WritePOLY(_, val uint8) {
	shift := val >> 4
	nc.width7 = hwio.GetBit8(val, 3)
	if shift >= 14 {
		// Shifts 14 and 15 leave the LFSR without clock.
		nc.timer.period = 0
	} else {
		nc.timer.period = NoiseDivisors[val&0x07] << shift
	}

	log.ModSound.InfoZ("write noise poly").
		Uint32("period", nc.timer.period).
		Bool("width7", nc.width7).
		End()
}

// NR44
func (nc *noiseChannel) WriteCONTROL(_, val uint8) {
	trigger := hwio.GetBit8(val, 7)
	if nc.length.writeControl(hwio.GetBit8(val, 6), trigger, nc.apu.seq.lengthFirstHalf()) {
		nc.enabled = false
	}
	if trigger {
		nc.enabled = nc.dacOn
		nc.lfsr = 0x7FFF
		nc.timer.restart()
		nc.envelope.restart()
	}
	nc.updateOutput(nc.apu.lastTime)

	log.ModSound.InfoZ("write noise control").Hex8("reg", val).Bool("trigger", trigger).End()
}

func (nc *noiseChannel) updateOutput(time uint32) {
	var level int32
	if nc.enabled && nc.dacOn {
		level = int32(nc.envelope.volume)
		if nc.lfsr&0x01 != 0 {
			level = -level
		}
	}
	nc.out.setLevel(time, level)
}

func (nc *noiseChannel) run(targetCycle uint32) {
	for nc.timer.run(targetCycle) {
		// Feedback is the exclusive-OR of bits 0 and 1, shifted into bit 14,
		// and into bit 6 as well in 7-bit mode.
		feedback := (nc.lfsr ^ nc.lfsr>>1) & 0x01
		nc.lfsr = nc.lfsr>>1 | feedback<<14
		if nc.width7 {
			nc.lfsr = nc.lfsr&^0x40 | feedback<<6
		}
		nc.updateOutput(nc.timer.prevCycle)
	}
}

func (nc *noiseChannel) tickEnvelope(time uint32) {
	if nc.envelope.tick() {
		nc.updateOutput(time)
	}
}

func (nc *noiseChannel) tickLength(time uint32) {
	if nc.length.tick() {
		nc.enabled = false
		nc.updateOutput(time)
	}
}

func (nc *noiseChannel) resetRegs() {
	nc.Length.ResetValue()
	nc.Envelope.ResetValue()
	nc.Poly.ResetValue()
	nc.Control.ResetValue()
}

func (nc *noiseChannel) reset(time uint32) {
	nc.out.setLevel(time, 0)
	nc.timer.reset()
	nc.timer.prevCycle = time
	nc.length.reset()
	nc.envelope.reset()

	nc.enabled = false
	nc.dacOn = false
	nc.lfsr = 0x7FFF
	nc.width7 = false
}
