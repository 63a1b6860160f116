package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"gbapu/emu/log"
)

type mode byte

const (
	renderMode  mode = iota // Render traces to WAV files
	toneMode                // Synthesize a test tone
	versionMode             // Show gbapu version
)

type (
	CLI struct {
		Render  Render  `cmd:"" help:"Render register traces to WAV files."`
		Tone    Tone    `cmd:"" help:"Synthesize a test tone on one channel."`
		Version Version `cmd:"" help:"Show gbapu version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `help:"${config_help}" type:"path" placeholder:"FILE"`

		mode mode
	}

	Render struct {
		Traces     []string `arg:"" name:"trace" help:"Trace files to render." type:"existingfile"`
		OutDir     string   `name:"outdir" short:"o" help:"${outdir_help}" type:"existingdir"`
		Jobs       int      `name:"jobs" short:"j" help:"Traces rendered concurrently. (default: from config)"`
		SampleRate int      `name:"rate" help:"${rate_help}"`
	}

	Tone struct {
		Out      string        `arg:"" name:"out.wav" help:"Output WAV file." type:"path"`
		Channel  string        `name:"channel" help:"Channel to play (${enum})." enum:"square1,square2,wave,noise" default:"square1"`
		Freq     float64       `name:"freq" help:"Tone frequency, in Hz." default:"440"`
		Duration time.Duration `name:"duration" help:"Tone duration." default:"1s"`
		Volume   uint8         `name:"volume" help:"Initial envelope volume (0-15)." default:"15"`
		Record   *outfile      `name:"record" help:"Also write the register trace." placeholder:"FILE|stdout|stderr"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"log_help":    "Enable logging for specified modules.",
	"config_help": "Configuration file. (default: config.toml in the user config directory)",
	"outdir_help": "Directory where WAV files are written. (default: next to each trace)",
	"rate_help":   "Output sample rate, overrides the trace and the configuration.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("gbapu"),
		kong.Description("Game Boy sound synthesizer."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch {
	case strings.HasPrefix(ctx.Command(), "render"):
		cfg.mode = renderMode
	case strings.HasPrefix(ctx.Command(), "tone"):
		cfg.mode = toneMode
	default:
		cfg.mode = versionMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if ctx.Command() == "" {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	f     *os.File
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into a file to write to.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.f = os.Stdout
	case "stderr":
		f.f = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.f = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.f.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
