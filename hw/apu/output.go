package apu

// channelOutput tracks the amplitude a channel has sent to its current output
// so that every change, re-routing or gain update turns into a single delta.
type channelOutput struct {
	target Output // nil when the channel is muted by NR51
	gain   int32
	level  int32 // signed channel level, before gain
	amp    int32 // amplitude currently held by target
}

func (o *channelOutput) update(time uint32) {
	if o.target == nil {
		return
	}
	amp := o.level * o.gain
	if delta := amp - o.amp; delta != 0 {
		o.target.AddDelta(time, delta)
		o.amp = amp
	}
}

func (o *channelOutput) setLevel(time uint32, level int32) {
	if level == o.level {
		return
	}
	o.level = level
	o.update(time)
}

func (o *channelOutput) setGain(time uint32, gain int32) {
	o.gain = gain
	o.update(time)
}

// route moves the channel to another output, cancelling what the previous one
// received.
func (o *channelOutput) route(time uint32, target Output) {
	if target == o.target {
		return
	}
	if o.target != nil && o.amp != 0 {
		o.target.AddDelta(time, -o.amp)
	}
	o.amp = 0
	o.target = target
	o.update(time)
}
