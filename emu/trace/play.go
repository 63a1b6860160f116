package trace

import (
	"fmt"

	"gbapu/emu/log"
	"gbapu/hw/hwdefs"
	"gbapu/hw/hwio"
)

// Synth is what a trace is played on; emu.Core implements it.
type Synth interface {
	Write(time uint32, addr uint16, val uint8)
	EndFrame(frameClocks uint32)
	ReadSamples(out []int16) int
}

// PowerSwitch is implemented by synths that emulate the NR52 power switch,
// such as emu.Core.
type PowerSwitch interface {
	MasterEnable(enable bool)
}

// Apply writes w to s. A write to NR52 first switches the power of s, if s
// is a PowerSwitch.
func Apply(s Synth, w Write) {
	if w.Addr == hwdefs.NR52 {
		if ps, ok := s.(PowerSwitch); ok {
			ps.MasterEnable(hwio.GetBit8(w.Val, 7))
		}
	}
	s.Write(w.Time, w.Addr, w.Val)
}

// Play replays every frame of t on s, honoring repeat counts. Writes go
// through Apply, so NR52 switches the power of s. After each
// frame the available samples are drained and passed to sink. The slice
// passed to sink is reused between calls.
func Play(t *Trace, s Synth, sink func(samples []int16) error) error {
	buf := make([]int16, 4096)
	nframes := 0
	for i, f := range t.Frames {
		for range f.Repeat {
			for _, w := range f.Writes {
				Apply(s, w)
			}
			s.EndFrame(f.Clocks)
			nframes++

			for {
				n := s.ReadSamples(buf)
				if n == 0 {
					break
				}
				if err := sink(buf[:n]); err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
			}
		}
	}
	log.ModTrace.DebugZ("trace played").Int("frames", nframes).End()
	return nil
}

// Recorder is a Synth that records all writes and frame ends into a trace,
// before forwarding them to the wrapped Synth.
type Recorder struct {
	Synth

	t   Trace
	cur []Write
}

func NewRecorder(s Synth, sampleRate int) *Recorder {
	return &Recorder{Synth: s, t: Trace{SampleRate: sampleRate}}
}

func (r *Recorder) Write(time uint32, addr uint16, val uint8) {
	r.cur = append(r.cur, Write{Time: time, Addr: addr, Val: val})
	r.Synth.Write(time, addr, val)
}

// MasterEnable forwards to the wrapped Synth, if it is a PowerSwitch. The
// NR52 write that follows is what gets recorded.
func (r *Recorder) MasterEnable(enable bool) {
	if ps, ok := r.Synth.(PowerSwitch); ok {
		ps.MasterEnable(enable)
	}
}

// EndFrame closes the current frame. Consecutive frames with no writes and
// the same length are merged into a single repeated frame.
func (r *Recorder) EndFrame(frameClocks uint32) {
	r.Synth.EndFrame(frameClocks)

	if len(r.cur) == 0 && len(r.t.Frames) > 0 {
		last := &r.t.Frames[len(r.t.Frames)-1]
		if len(last.Writes) == 0 && last.Clocks == frameClocks {
			last.Repeat++
			return
		}
	}
	r.t.Frames = append(r.t.Frames, Frame{Clocks: frameClocks, Repeat: 1, Writes: r.cur})
	r.cur = nil
}

// Trace returns the trace recorded so far. Writes made after the last
// EndFrame are not part of it.
func (r *Recorder) Trace() *Trace {
	return &r.t
}
