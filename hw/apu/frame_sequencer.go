package apu

// Clocks between two frame sequencer steps (512Hz).
const seqPeriod = 8192

// frameSequencer drives the low frequency units:
//
//	Step   Length Ctr  Vol Env     Sweep
//	---------------------------------------
//	0      Clock       -           -
//	1      -           -           -
//	2      Clock       -           Clock
//	3      -           -           -
//	4      Clock       -           -
//	5      -           -           -
//	6      Clock       -           Clock
//	7      -           Clock       -
type frameSequencer struct {
	next uint32 // time of the next step
	step uint8  // index of the next step
}

func (fs *frameSequencer) reset(time uint32) {
	fs.next = time + seqPeriod
	fs.step = 0
}

// lengthFirstHalf reports whether the next step doesn't clock the length
// counters.
func (fs *frameSequencer) lengthFirstHalf() bool {
	return fs.step&1 != 0
}

func (fs *frameSequencer) endFrame(frameClocks uint32) {
	fs.next -= frameClocks
}

// clock runs the current step at time and schedules the next one.
func (fs *frameSequencer) clock(a *APU, time uint32) {
	switch fs.step {
	case 0, 4:
		a.tickLength(time)
	case 2, 6:
		a.tickLength(time)
		a.Square1.tickSweep(time)
	case 7:
		a.tickEnvelope(time)
	}
	fs.step = (fs.step + 1) & 0x07
	fs.next += seqPeriod
}
