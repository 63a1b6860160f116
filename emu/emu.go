package emu

import (
	"fmt"

	"gbapu/emu/log"
	"gbapu/hw/apu"
	"gbapu/hw/audio"
	"gbapu/hw/hwdefs"
)

// Core ties the APU to its stereo buffer. It is meant to be driven by a host
// emulator: register writes, timestamped in CPU clocks since the start of the
// current frame, a call to EndFrame once per frame, and reads of the samples
// that were produced.
//
// A Core is not safe for concurrent use.
type Core struct {
	APU *apu.APU
	buf *audio.StereoBuffer

	clocks uint32 // clocks elapsed since frame start, see Advance
}

// New creates a Core producing samples at cfg.SampleRate. An invalid
// configuration is an error.
func New(cfg AudioConfig) (*Core, error) {
	buf := audio.NewStereoBuffer()
	if err := buf.Configure(cfg.SampleRate, cfg.LatencyMs); err != nil {
		return nil, fmt.Errorf("emu: %w", err)
	}
	if err := buf.SetClockRate(hwdefs.ClockRate); err != nil {
		return nil, fmt.Errorf("emu: %w", err)
	}

	a := apu.New()
	a.SetOutput(buf.Center(), buf.Left(), buf.Right())

	log.ModEmu.InfoZ("core created").
		Int("rate", cfg.SampleRate).
		Int("latency", cfg.LatencyMs).
		End()

	return &Core{APU: a, buf: buf}, nil
}

// NewCore creates a Core with the default latency.
func NewCore(sampleRate int) (*Core, error) {
	return New(AudioConfig{SampleRate: sampleRate, LatencyMs: DefaultLatencyMs})
}

// Write writes val to the sound register at addr, at the given time.
func (c *Core) Write(time uint32, addr uint16, val uint8) {
	c.APU.Write(time, addr, val)
}

// ReadRegister reads the sound register at addr, at the current clock count.
func (c *Core) ReadRegister(addr uint16) uint8 {
	return c.APU.ReadRegister(c.clocks, addr)
}

// EndFrame ends the current frame after frameClocks clocks, at most
// apu.MaxTime. The APU runs first, then the buffer turns what it produced
// into samples.
func (c *Core) EndFrame(frameClocks uint32) {
	frameClocks = min(frameClocks, apu.MaxTime)
	c.APU.EndFrame(frameClocks)
	c.buf.EndFrame(frameClocks)

	if c.clocks > frameClocks {
		c.clocks -= frameClocks
	} else {
		c.clocks = 0
	}
}

// ReadSamples moves at most len(out) interleaved stereo samples into out, and
// returns how many it wrote, always an even number.
func (c *Core) ReadSamples(out []int16) int {
	return c.buf.ReadSamples(out)
}

// SamplesAvailable returns how many interleaved samples ReadSamples can
// return.
func (c *Core) SamplesAvailable() int {
	return c.buf.SamplesAvailable()
}

// Reset silences all channels and drops buffered audio.
func (c *Core) Reset() {
	c.APU.Reset()
	c.buf.Clear()
}

// MasterEnable emulates the sound power switch (NR52 bit 7). There is no power
// state: turning it off resets the APU and clears the buffer, turning it on
// has no effect.
func (c *Core) MasterEnable(enable bool) {
	log.ModEmu.InfoZ("master enable").Bool("enable", enable).End()
	if !enable {
		c.Reset()
	}
}

// Advance adds clocks to the clock count of the current frame, at which
// WriteIO and ReadRegister happen.
func (c *Core) Advance(clocks uint32) {
	c.clocks += clocks
}

// Clocks returns the clock count of the current frame.
func (c *Core) Clocks() uint32 {
	return c.clocks
}

// WriteIO writes val at addr at the current clock count. A write to NR52
// switches the sound power first.
func (c *Core) WriteIO(addr uint16, val uint8) {
	if addr == hwdefs.NR52 {
		c.MasterEnable(val&0x80 != 0)
	}
	c.APU.Write(c.clocks, addr, val)
}
