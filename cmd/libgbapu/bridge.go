package main

import (
	"runtime/cgo"

	"gbapu/emu"
	"gbapu/emu/log"
)

func newCore(sampleRate int) uintptr {
	core, err := emu.NewCore(sampleRate)
	if err != nil {
		log.ModFFI.ErrorZ("can't create apu").Int("rate", sampleRate).Error("err", err).End()
		return 0
	}
	return uintptr(cgo.NewHandle(core))
}

// lookup returns the core behind handle h, or nil if h is not a live handle.
func lookup(h uintptr) (core *emu.Core) {
	if h == 0 {
		return nil
	}
	defer func() {
		if recover() != nil {
			log.ModFFI.WarnZ("invalid handle").Uint64("handle", uint64(h)).End()
			core = nil
		}
	}()
	core, _ = cgo.Handle(h).Value().(*emu.Core)
	return core
}

func deleteCore(h uintptr) {
	if lookup(h) == nil {
		return
	}
	cgo.Handle(h).Delete()
}

func resetCore(h uintptr) {
	if core := lookup(h); core != nil {
		core.Reset()
	}
}

func writeCore(h uintptr, time uint32, addr uint16, val uint8) {
	if core := lookup(h); core != nil {
		core.Write(time, addr, val)
	}
}

func endFrame(h uintptr, clocks uint32) {
	if core := lookup(h); core != nil {
		core.EndFrame(clocks)
	}
}

func readSamples(h uintptr, out []int16) int {
	if core := lookup(h); core != nil {
		return core.ReadSamples(out)
	}
	return 0
}

func masterEnable(h uintptr, enable bool) {
	if core := lookup(h); core != nil {
		core.MasterEnable(enable)
	}
}
