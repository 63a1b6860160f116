package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gbapu/emu"
	"gbapu/emu/log"
	"gbapu/emu/trace"
	"gbapu/emu/wav"
)

// renderMain renders each trace to a WAV file, in parallel.
func renderMain(args Render, cfg emu.Config) error {
	jobs := cfg.Render.Jobs
	if args.Jobs > 0 {
		jobs = args.Jobs
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(jobs)

	for _, path := range args.Traces {
		out := wavPath(path, args.OutDir)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := renderFile(path, out, args.SampleRate, cfg.Audio); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Println(path, "->", out)
			return nil
		})
	}
	return g.Wait()
}

// wavPath returns the path of the WAV file rendered from trace path.
func wavPath(path, outdir string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".wav"
	if outdir == "" {
		outdir = filepath.Dir(path)
	}
	return filepath.Join(outdir, base)
}

// renderFile renders the trace at path into a WAV file at out. The sample
// rate is taken, by order of priority, from rate, the trace then acfg.
func renderFile(path, out string, rate int, acfg emu.AudioConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tr, err := trace.Read(f)
	if err != nil {
		return err
	}

	switch {
	case rate > 0:
		acfg.SampleRate = rate
	case tr.SampleRate > 0:
		acfg.SampleRate = tr.SampleRate
	}

	core, err := emu.New(acfg)
	if err != nil {
		return err
	}

	wf, err := os.Create(out)
	if err != nil {
		return err
	}
	defer wf.Close()

	start := time.Now()
	ww, err := wav.NewWriter(wf, acfg.SampleRate)
	if err != nil {
		return err
	}
	if err := trace.Play(tr, core, ww.WriteSamples); err != nil {
		return err
	}
	if err := ww.Close(); err != nil {
		return err
	}

	log.ModEmu.InfoZ("trace rendered").
		String("trace", path).
		Int("frames", ww.Frames()).
		Duration("took", time.Since(start)).
		End()
	return wf.Close()
}
