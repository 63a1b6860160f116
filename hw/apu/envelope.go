package apu

// envelope is the NRx2 volume unit of the pulse and noise channels.
type envelope struct {
	initial  uint8
	increase bool
	period   uint8

	volume  uint8
	divider uint8
}

func (env *envelope) reset() {
	*env = envelope{}
}

// write stores NRx2. It reports whether the DAC is powered, that is if any of
// the upper 5 bits is set.
func (env *envelope) write(val uint8) bool {
	env.initial = val >> 4
	env.increase = val&0x08 != 0
	env.period = val & 0x07
	return val&0xF8 != 0
}

func (env *envelope) restart() {
	env.volume = env.initial
	env.divider = env.period
	if env.divider == 0 {
		env.divider = 8
	}
}

// tick clocks the envelope (64Hz) and reports whether the volume changed.
func (env *envelope) tick() bool {
	if env.period == 0 {
		return false
	}

	env.divider--
	if env.divider != 0 {
		return false
	}
	env.divider = env.period

	switch {
	case env.increase && env.volume < 15:
		env.volume++
		return true
	case !env.increase && env.volume > 0:
		env.volume--
		return true
	}
	return false
}
