package apu

// lengthCounter silences its channel after a programmable number of frame
// sequencer length clocks (256Hz).
type lengthCounter struct {
	max     uint16 // 64, or 256 for the wave channel
	counter uint16
	enabled bool
}

func (lc *lengthCounter) reset() {
	lc.counter = 0
	lc.enabled = false
}

// load sets the counter from the length field of NRx1.
func (lc *lengthCounter) load(val uint8) {
	lc.counter = lc.max - uint16(val)
}

// tick clocks the counter and reports whether it just expired.
func (lc *lengthCounter) tick() bool {
	if !lc.enabled || lc.counter == 0 {
		return false
	}
	lc.counter--
	return lc.counter == 0
}

// writeControl applies the NRx4 length enable bit and the trigger reload.
// firstHalf reports whether the next frame sequencer step won't clock length
// counters, in which case enabling the counter clocks it once more. It
// reports whether the channel must be disabled.
func (lc *lengthCounter) writeControl(enable, trigger, firstHalf bool) bool {
	wasEnabled := lc.enabled
	lc.enabled = enable

	expired := false
	if firstHalf && !wasEnabled && enable && lc.counter != 0 {
		lc.counter--
		expired = lc.counter == 0 && !trigger
	}

	if trigger && lc.counter == 0 {
		lc.counter = lc.max
		if enable && firstHalf {
			lc.counter--
		}
	}
	return expired
}
