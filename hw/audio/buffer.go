// Package audio converts the timestamped amplitude changes of the APU into
// interleaved 16-bit stereo samples.
package audio

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/arl/blip"

	"gbapu/emu/log"
)

const (
	MinSampleRate = 8000
	MaxSampleRate = 96000

	minBufferSize = 256

	// Most samples generated in one blip frame, blip time computation
	// overflows past blip.MaxFrame.
	maxChunkSamples = blip.MaxFrame / 2
)

var ErrNotConfigured = errors.New("audio: buffer not configured")

const (
	center = iota
	left
	right
	numOutputs
)

var outputNames = [numOutputs]string{"center", "left", "right"}

type delta struct {
	time uint32
	amp  int32
}

// Target collects the amplitude changes sent to one of the buffer outputs
// until the next EndFrame.
type Target struct {
	name   string
	deltas []delta
}

func (t *Target) AddDelta(time uint32, amp int32) {
	if amp == 0 {
		return
	}
	t.deltas = append(t.deltas, delta{time: time, amp: amp})
}

func (t *Target) String() string {
	return t.name
}

// StereoBuffer holds three band-limited buffers (center, left and right),
// mixed down to stereo when samples are read.
type StereoBuffer struct {
	bufs    [numOutputs]*blip.Buffer
	targets [numOutputs]Target
	scratch [numOutputs][]int16

	sampleRate  int
	clockRate   int
	size        int    // capacity of each buffer, in samples
	chunkClocks uint32 // longest time span fed to blip at once
}

func NewStereoBuffer() *StereoBuffer {
	sb := &StereoBuffer{}
	for i := range sb.targets {
		sb.targets[i].name = outputNames[i]
	}
	return sb
}

// Configure sets the output sample rate and allocates enough room for
// latencyMs milliseconds of audio. Buffered samples are lost.
func (sb *StereoBuffer) Configure(sampleRate, latencyMs int) error {
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return fmt.Errorf("audio: sample rate %dHz out of range [%d, %d]", sampleRate, MinSampleRate, MaxSampleRate)
	}
	if latencyMs <= 0 {
		return fmt.Errorf("audio: invalid latency %dms", latencyMs)
	}

	size := max(sampleRate*latencyMs/1000, minBufferSize)
	for i := range sb.bufs {
		sb.bufs[i] = blip.NewBuffer(size)
		sb.scratch[i] = make([]int16, 0, min(size, 4096))
	}
	sb.sampleRate = sampleRate
	sb.size = size

	log.ModBuffer.InfoZ("configured").
		Int("rate", sampleRate).
		Int("latency", latencyMs).
		Int("size", size).
		End()

	if sb.clockRate != 0 {
		return sb.SetClockRate(sb.clockRate)
	}
	sb.Clear()
	return nil
}

// SetClockRate sets the rate of the clock in which delta times are expressed.
// Buffered samples are lost.
func (sb *StereoBuffer) SetClockRate(hz int) error {
	if sb.bufs[center] == nil {
		return ErrNotConfigured
	}
	if hz < sb.sampleRate || float64(hz) > float64(sb.sampleRate)*blip.MaxRatio {
		return fmt.Errorf("audio: clock rate %dHz unsupported for %dHz output", hz, sb.sampleRate)
	}

	for _, buf := range sb.bufs {
		buf.SetRates(float64(hz), float64(sb.sampleRate))
	}
	sb.clockRate = hz

	chunk := min(sb.size/2, maxChunkSamples)
	sb.chunkClocks = uint32(max(int64(chunk)*int64(hz)/int64(sb.sampleRate), 1))

	sb.Clear()
	return nil
}

func (sb *StereoBuffer) Center() *Target { return &sb.targets[center] }
func (sb *StereoBuffer) Left() *Target   { return &sb.targets[left] }
func (sb *StereoBuffer) Right() *Target  { return &sb.targets[right] }

func (sb *StereoBuffer) ready() bool {
	return sb.bufs[center] != nil && sb.clockRate != 0
}

// SamplesAvailable returns the number of interleaved samples ReadSamples can
// return.
func (sb *StereoBuffer) SamplesAvailable() int {
	if !sb.ready() {
		return 0
	}
	return sb.bufs[center].SamplesAvailable() * 2
}

// Clear drops pending deltas and buffered samples.
func (sb *StereoBuffer) Clear() {
	for i := range sb.targets {
		sb.targets[i].deltas = sb.targets[i].deltas[:0]
	}
	for _, buf := range sb.bufs {
		if buf != nil {
			buf.Clear()
		}
	}
}

// EndFrame makes the deltas before frameClocks available as samples. Deltas
// at or past frameClocks are kept for the next frame, relative to its start.
func (sb *StereoBuffer) EndFrame(frameClocks uint32) {
	if !sb.ready() {
		sb.Clear()
		return
	}

	for i := range sb.targets {
		slices.SortStableFunc(sb.targets[i].deltas, func(a, b delta) int {
			return cmp.Compare(a.time, b.time)
		})
	}

	var next [numOutputs]int
	for start := uint32(0); start < frameClocks; {
		end := start + min(frameClocks-start, sb.chunkClocks)
		sb.reserve(end - start)

		for i, buf := range sb.bufs {
			deltas := sb.targets[i].deltas
			for next[i] < len(deltas) && deltas[next[i]].time < end {
				d := deltas[next[i]]
				buf.AddDelta(uint64(d.time-start), d.amp)
				next[i]++
			}
			buf.EndFrame(int(end - start))
		}
		start = end
	}

	for i := range sb.targets {
		t := &sb.targets[i]
		n := copy(t.deltas, t.deltas[next[i]:])
		t.deltas = t.deltas[:n]
		for j := range t.deltas {
			t.deltas[j].time -= frameClocks
		}
	}
}

// reserve drops the oldest samples if the buffers can't hold what clocks
// more clocks will produce.
func (sb *StereoBuffer) reserve(clocks uint32) {
	need := int(uint64(clocks)*uint64(sb.sampleRate)/uint64(sb.clockRate)) + 2
	avail := sb.bufs[center].SamplesAvailable()
	if avail+need <= sb.size {
		return
	}

	drop := min(avail+need-sb.size, avail)
	for i, buf := range sb.bufs {
		sb.scratch[i] = slices.Grow(sb.scratch[i][:0], drop)[:drop]
		buf.ReadSamples(sb.scratch[i], drop, blip.Mono)
	}

	log.ModBuffer.WarnZ("buffer full, dropped oldest samples").
		Int("dropped", drop).
		Int("size", sb.size).
		End()
}

// ReadSamples moves at most len(out)/2 stereo samples into out, interleaved
// left then right. It returns the number of int16 values written.
func (sb *StereoBuffer) ReadSamples(out []int16) int {
	if !sb.ready() {
		return 0
	}
	n := min(len(out)/2, sb.bufs[center].SamplesAvailable())
	if n == 0 {
		return 0
	}

	for i, buf := range sb.bufs {
		sb.scratch[i] = slices.Grow(sb.scratch[i][:0], n)[:n]
		buf.ReadSamples(sb.scratch[i], n, blip.Mono)
	}

	c, l, r := sb.scratch[center], sb.scratch[left], sb.scratch[right]
	for i := range n {
		out[2*i] = clamp16(int32(c[i]) + int32(l[i]))
		out[2*i+1] = clamp16(int32(c[i]) + int32(r[i]))
	}
	return 2 * n
}

func clamp16(v int32) int16 {
	if int32(int16(v)) != v {
		v = (v >> 31) ^ 0x7FFF
	}
	return int16(v)
}
