package apu

// timer divides the CPU clock down to the rate at which a channel steps its
// waveform. A zero period stops the timer.
type timer struct {
	prevCycle uint32 // time the timer has been run up to
	counter   uint32 // clocks left before the next step
	period    uint32
}

func (t *timer) reset() {
	t.prevCycle = 0
	t.counter = 0
	t.period = 0
}

// restart reloads the counter with the current period, as on trigger.
func (t *timer) restart() {
	t.counter = t.period
}

// run advances the timer toward targetCycle. It stops at the first expiry
// and reports it, prevCycle then holding the expiry time.
func (t *timer) run(targetCycle uint32) bool {
	if t.period == 0 {
		t.prevCycle = targetCycle
		return false
	}
	if t.counter == 0 {
		t.counter = t.period
	}

	cyclesToRun := targetCycle - t.prevCycle
	if cyclesToRun >= t.counter {
		t.prevCycle += t.counter
		t.counter = t.period
		return true
	}

	t.counter -= cyclesToRun
	t.prevCycle = targetCycle
	return false
}

// endFrame moves the time origin to the end of the current frame.
func (t *timer) endFrame(frameClocks uint32) {
	t.prevCycle -= frameClocks
}
