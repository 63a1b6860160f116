package apu

//go:generate go tool stringer -type=Channel

type Channel uint8

const (
	Square1 Channel = iota
	Square2
	Wave
	Noise
)

// Output receives the amplitude changes of the channels routed to it. Times
// are in clocks, relative to the start of the current frame.
type Output interface {
	AddDelta(time uint32, delta int32)
}
