package emu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"gbapu/emu/log"
	"gbapu/hw/hwdefs"
)

type Config struct {
	Audio  AudioConfig  `toml:"audio"`
	Render RenderConfig `toml:"render"`
}

type AudioConfig struct {
	SampleRate int `toml:"sample_rate"`
	LatencyMs  int `toml:"latency_ms"` // buffered audio, in milliseconds
}

type RenderConfig struct {
	FrameClocks uint32 `toml:"frame_clocks"`
	Jobs        int    `toml:"jobs"` // traces rendered concurrently
}

const (
	DefaultSampleRate = 44100
	DefaultLatencyMs  = 1000
)

const DefaultFileMode = os.FileMode(0755)

var ConfigDir = sync.OnceValue(func() string {
	cfgdir, err := os.UserConfigDir()
	if err != nil {
		log.ModEmu.Fatalf("failed to get user config directory: %v", err)
	}

	dir := filepath.Join(cfgdir, "gbapu")
	if err := os.MkdirAll(dir, DefaultFileMode); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// DefaultConfigPath is the path of the configuration file in the gbapu config
// directory.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), cfgFilename)
}

func DefaultConfig() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: DefaultSampleRate,
			LatencyMs:  DefaultLatencyMs,
		},
		Render: RenderConfig{
			FrameClocks: hwdefs.FrameClocks,
			Jobs:        4,
		},
	}
}

// LoadConfig reads the configuration at path. Missing keys keep their
// default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.ModEmu.WarnZ("unknown config key").String("key", key.String()).String("file", path).End()
	}
	if err := cfg.Check(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads the configuration at path, or provide a default
// one.
func LoadConfigOrDefault(path string) Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.ModEmu.WarnZ("using default config").Error("err", err).End()
		}
		return DefaultConfig()
	}
	return cfg
}

// SaveConfig writes cfg at path.
func SaveConfig(path string, cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, buf, 0644)
}

// Check validates the configuration values that can't be fixed up.
func (cfg *Config) Check() error {
	if cfg.Render.FrameClocks == 0 {
		return fmt.Errorf("render.frame_clocks must be positive")
	}
	if cfg.Render.Jobs <= 0 {
		cfg.Render.Jobs = 1
	}
	return nil
}
