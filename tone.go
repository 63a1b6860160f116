package main

import (
	"fmt"
	"math"
	"os"

	"gbapu/emu"
	"gbapu/emu/trace"
	"gbapu/emu/wav"
	"gbapu/hw/apu"
	"gbapu/hw/hwdefs"
)

// triangle wave, 32 4-bit samples.
var triangle = [hwdefs.WaveRAMSize]uint8{
	0x01, 0x23, 0x45, 0x67, 0x89, 0xAB, 0xCD, 0xEF,
	0xFE, 0xDC, 0xBA, 0x98, 0x76, 0x54, 0x32, 0x10,
}

// freqReg converts freq into the 11-bit frequency register value of a channel
// which output period is (2048-x)*unit clocks.
func freqReg(freq float64, unit float64) (uint16, error) {
	if freq <= 0 {
		return 0, fmt.Errorf("invalid frequency %v", freq)
	}
	x := 2048 - math.Round(hwdefs.ClockRate/(unit*freq))
	if x < 0 || x > 2047 {
		return 0, fmt.Errorf("frequency %vHz out of range", freq)
	}
	return uint16(x), nil
}

// noisePoly returns the NR43 value which LFSR clock rate is the closest to
// freq.
func noisePoly(freq float64) (uint8, error) {
	if freq <= 0 {
		return 0, fmt.Errorf("invalid frequency %v", freq)
	}
	best, bestDiff := uint8(0), math.Inf(1)
	for shift := range uint8(14) {
		for r, div := range apu.NoiseDivisors {
			rate := hwdefs.ClockRate / float64(div<<shift)
			if d := math.Abs(math.Log(rate / freq)); d < bestDiff {
				best, bestDiff = shift<<4|uint8(r), d
			}
		}
	}
	return best, nil
}

// toneWrites returns the register writes starting a tone on channel ch. For
// the noise channel, freq is the LFSR clock rate.
func toneWrites(ch string, freq float64, volume uint8) ([]trace.Write, error) {
	if volume > 15 {
		return nil, fmt.Errorf("invalid volume %d", volume)
	}

	var (
		writes []trace.Write
		chnum  uint
	)
	w := func(addr uint16, val uint8) {
		writes = append(writes, trace.Write{Addr: addr, Val: val})
	}

	w(hwdefs.NR52, 0x80)
	w(hwdefs.NR50, 0x77)

	switch ch {
	case "square1", "square2":
		x, err := freqReg(freq, 32)
		if err != nil {
			return nil, err
		}
		base := hwdefs.NR11
		if ch == "square1" {
			w(hwdefs.NR10, 0x00)
		} else {
			base, chnum = hwdefs.NR21, 1
		}
		w(base, 0x80) // 50% duty
		w(base+1, volume<<4)
		w(base+2, uint8(x))
		w(base+3, 0x80|uint8(x>>8))
	case "wave":
		x, err := freqReg(freq, 64)
		if err != nil {
			return nil, err
		}
		chnum = 2
		w(hwdefs.NR30, 0x00)
		for i, b := range triangle {
			w(hwdefs.WaveRAM+uint16(i), b)
		}
		w(hwdefs.NR30, 0x80)
		w(hwdefs.NR32, 0x20) // 100%
		w(hwdefs.NR33, uint8(x))
		w(hwdefs.NR34, 0x80|uint8(x>>8))
	case "noise":
		poly, err := noisePoly(freq)
		if err != nil {
			return nil, err
		}
		chnum = 3
		w(hwdefs.NR42, volume<<4)
		w(hwdefs.NR43, poly)
		w(hwdefs.NR44, 0x80)
	default:
		return nil, fmt.Errorf("unknown channel %q", ch)
	}

	w(hwdefs.NR51, 0x11<<chnum)
	return writes, nil
}

// toneMain synthesizes a tone and writes it to a WAV file, and optionally
// records the register trace.
func toneMain(args Tone, cfg emu.Config) error {
	writes, err := toneWrites(args.Channel, args.Freq, args.Volume)
	if err != nil {
		return err
	}

	core, err := emu.New(cfg.Audio)
	if err != nil {
		return err
	}

	var synth trace.Synth = core
	var rec *trace.Recorder
	if args.Record != nil {
		defer args.Record.Close()
		rec = trace.NewRecorder(core, cfg.Audio.SampleRate)
		synth = rec
	}

	f, err := os.Create(args.Out)
	if err != nil {
		return err
	}
	defer f.Close()

	ww, err := wav.NewWriter(f, cfg.Audio.SampleRate)
	if err != nil {
		return err
	}

	for _, wr := range writes {
		trace.Apply(synth, wr)
	}

	fc := cfg.Render.FrameClocks
	nframes := int(math.Ceil(args.Duration.Seconds() * hwdefs.ClockRate / float64(fc)))
	buf := make([]int16, 4096)
	for range nframes {
		synth.EndFrame(fc)
		for {
			n := synth.ReadSamples(buf)
			if n == 0 {
				break
			}
			if err := ww.WriteSamples(buf[:n]); err != nil {
				return err
			}
		}
	}
	if err := ww.Close(); err != nil {
		return err
	}

	if rec != nil {
		if _, err := rec.Trace().WriteTo(args.Record); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}
	return f.Close()
}
