package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"gbapu/emu"
)

func main() {
	args := parseArgs(os.Args[1:])

	cfgPath := args.Config
	if cfgPath == "" {
		cfgPath = emu.DefaultConfigPath()
	}
	cfg := emu.LoadConfigOrDefault(cfgPath)

	switch args.mode {
	case renderMode:
		checkf(renderMain(args.Render, cfg), "render failed")
	case toneMode:
		checkf(toneMain(args.Tone, cfg), "tone failed")
	case versionMode:
		fmt.Println("gbapu", version())
	}
}

func version() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
