package apu

import (
	"gbapu/emu/log"
	"gbapu/hw/hwio"
)

// There are two square channels, at $FF10 and $FF15. Each contains the
// following: Sweep Unit (channel 1 only), Timer, 8-step duty sequencer,
// Envelope, Length Counter.
//
//	+---------+    +---------+    +---------+
//	|  Sweep  |--->|  Timer  |--->|Sequencer|
//	+---------+    +---------+    +---------+
//	                                   |
//	                                   v
//	+---------+                       |\          |\          +---------+
//	|Envelope |---------------------->| >-------->| >-------->|   DAC   |
//	+---------+                       |/          |/          +---------+
//	                                               ^
//	                                  +---------+  |
//	                                  | Length  |--+
//	                                  +---------+
type squareChannel struct {
	apu     *APU
	channel Channel

	out      channelOutput
	timer    timer
	length   lengthCounter
	envelope envelope

	enabled bool
	dacOn   bool

	duty    uint8
	dutyPos uint8
	freq    uint16

	hasSweep     bool
	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepDivider uint8
	sweepShadow  uint16
	sweepNegUsed bool // a negated sweep calculation happened since trigger

	Sweep    hwio.Reg8 `hwio:"bank=1,offset=0x0,reset=0x80,wcb"`
	Duty     hwio.Reg8 `hwio:"offset=0x1,reset=0x3F,wcb"`
	Envelope hwio.Reg8 `hwio:"offset=0x2,wcb"`
	FreqLo   hwio.Reg8 `hwio:"offset=0x3,reset=0xFF,wcb"`
	FreqHi   hwio.Reg8 `hwio:"offset=0x4,reset=0x3F,wcb"`
}

func newSquareChannel(apu *APU, channel Channel, hasSweep bool) squareChannel {
	return squareChannel{
		apu:      apu,
		channel:  channel,
		hasSweep: hasSweep,
		length:   lengthCounter{max: 64},
	}
}

// duty cycle sequences for the square channels (12.5%, 25%, 50%, 75%).
var squareDuty = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 0},
}

// NR10
func (sc *squareChannel) WriteSWEEP(_, val uint8) {
	sc.sweepPeriod = (val >> 4) & 0x07
	sc.sweepNegate = hwio.GetBit8(val, 3)
	sc.sweepShift = val & 0x07

	// Leaving negate mode after a calculation has been made in it disables
	// the channel.
	if sc.sweepNegUsed && !sc.sweepNegate {
		sc.enabled = false
		sc.updateOutput(sc.apu.lastTime)
	}

	log.ModSound.InfoZ("write pulse sweep").
		Stringer("ch", sc.channel).
		Uint8("period", sc.sweepPeriod).
		Bool("negate", sc.sweepNegate).
		Uint8("shift", sc.sweepShift).
		End()
}

// NRx1
func (sc *squareChannel) WriteDUTY(_, val uint8) {
	sc.duty = val >> 6
	sc.length.load(val & 0x3F)
	sc.updateOutput(sc.apu.lastTime)

	log.ModSound.InfoZ("write pulse duty").
		Stringer("ch", sc.channel).
		Uint8("duty", sc.duty).
		Uint16("length", sc.length.counter).
		End()
}

// NRx2
func (sc *squareChannel) WriteENVELOPE(_, val uint8) {
	sc.dacOn = sc.envelope.write(val)
	if !sc.dacOn {
		sc.enabled = false
	}
	sc.updateOutput(sc.apu.lastTime)

	log.ModSound.InfoZ("write pulse envelope").
		Stringer("ch", sc.channel).
		Hex8("reg", val).
		Bool("dac", sc.dacOn).
		End()
}

// NRx3
func (sc *squareChannel) WriteFREQLO(_, val uint8) {
	sc.setFreq(sc.freq&0x700 | uint16(val))
	sc.updateOutput(sc.apu.lastTime)
}

// NRx4
func (sc *squareChannel) WriteFREQHI(_, val uint8) {
	sc.setFreq(sc.freq&0xFF | uint16(val&0x07)<<8)

	trigger := hwio.GetBit8(val, 7)
	if sc.length.writeControl(hwio.GetBit8(val, 6), trigger, sc.apu.seq.lengthFirstHalf()) {
		sc.enabled = false
	}
	if trigger {
		sc.trigger()
	}
	sc.updateOutput(sc.apu.lastTime)

	log.ModSound.InfoZ("write pulse freq hi").
		Stringer("ch", sc.channel).
		Hex8("reg", val).
		Uint16("freq", sc.freq).
		Bool("trigger", trigger).
		End()
}

func (sc *squareChannel) setFreq(freq uint16) {
	sc.freq = freq
	sc.timer.period = (2048 - uint32(freq)) * 4
}

func (sc *squareChannel) trigger() {
	sc.enabled = sc.dacOn
	sc.timer.restart()
	sc.envelope.restart()

	if sc.hasSweep {
		sc.sweepShadow = sc.freq
		sc.sweepDivider = sc.sweepPeriod
		if sc.sweepDivider == 0 {
			sc.sweepDivider = 8
		}
		sc.sweepEnabled = sc.sweepPeriod != 0 || sc.sweepShift != 0
		sc.sweepNegUsed = false
		if sc.sweepShift != 0 {
			sc.sweepTarget()
		}
	}
}

// sweepTarget computes the next swept frequency, disabling the channel on
// overflow.
func (sc *squareChannel) sweepTarget() uint16 {
	delta := sc.sweepShadow >> sc.sweepShift
	if sc.sweepNegate {
		sc.sweepNegUsed = true
		return sc.sweepShadow - delta
	}
	freq := sc.sweepShadow + delta
	if freq > 2047 {
		sc.enabled = false
	}
	return freq
}

func (sc *squareChannel) tickSweep(time uint32) {
	if sc.sweepDivider > 0 {
		sc.sweepDivider--
	}
	if sc.sweepDivider != 0 {
		return
	}
	sc.sweepDivider = sc.sweepPeriod
	if sc.sweepDivider == 0 {
		sc.sweepDivider = 8
	}
	if !sc.sweepEnabled || sc.sweepPeriod == 0 {
		return
	}

	freq := sc.sweepTarget()
	if freq <= 2047 && sc.sweepShift != 0 {
		sc.sweepShadow = freq
		sc.setFreq(freq)
		sc.FreqLo.Value = uint8(freq)
		sc.FreqHi.Value = sc.FreqHi.Value&^0x07 | uint8(freq>>8)

		// Overflow check again with the new frequency.
		sc.sweepTarget()
	}
	sc.updateOutput(time)
}

func (sc *squareChannel) tickEnvelope(time uint32) {
	if sc.envelope.tick() {
		sc.updateOutput(time)
	}
}

func (sc *squareChannel) tickLength(time uint32) {
	if sc.length.tick() {
		sc.enabled = false
		sc.updateOutput(time)
	}
}

func (sc *squareChannel) updateOutput(time uint32) {
	var level int32
	// Frequencies above 2041 are inaudible, the channel outputs its average.
	if sc.enabled && sc.dacOn && sc.freq <= 2041 {
		level = int32(sc.envelope.volume)
		if squareDuty[sc.duty][sc.dutyPos] == 0 {
			level = -level
		}
	}
	sc.out.setLevel(time, level)
}

func (sc *squareChannel) run(targetCycle uint32) {
	for sc.timer.run(targetCycle) {
		sc.dutyPos = (sc.dutyPos + 1) & 0x07
		sc.updateOutput(sc.timer.prevCycle)
	}
}

// resetRegs writes the power-up values of the channel registers.
func (sc *squareChannel) resetRegs() {
	if sc.hasSweep {
		sc.Sweep.ResetValue()
	}
	sc.Duty.ResetValue()
	sc.Envelope.ResetValue()
	sc.FreqLo.ResetValue()
	sc.FreqHi.ResetValue()
}

func (sc *squareChannel) reset(time uint32) {
	sc.out.setLevel(time, 0)
	sc.timer.reset()
	sc.timer.prevCycle = time
	sc.length.reset()
	sc.envelope.reset()

	sc.enabled = false
	sc.dacOn = false
	sc.duty = 0
	sc.dutyPos = 0
	sc.freq = 0

	sc.sweepEnabled = false
	sc.sweepPeriod = 0
	sc.sweepNegate = false
	sc.sweepShift = 0
	sc.sweepDivider = 0
	sc.sweepShadow = 0
	sc.sweepNegUsed = false
}
