// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "barviz/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg.Visualizer.NumBars != DefaultNumBars || cfg.Visualizer.Interval != DefaultInterval || cfg.Visualizer.BlockSize != DefaultBlockSize {
		t.Errorf("defaults not applied: %+v", cfg.Visualizer)
	}
	if !cfg.Visualizer.Loop {
		t.Error("looping should be on by default")
	}
	if cfg.Display.Mode != DisplayTUI {
		t.Errorf("display mode = %q, want %q", cfg.Display.Mode, DisplayTUI)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: warn
visualizer:
  num_bars: 32
  interval: 25ms
  block_size: 4096
  window: Blackman
  aggregate: max
  spacing: linear
  fft_backend: godsp
  loop: false
display:
  mode: log
transport:
  ws_enabled: true
  ws_address: ":9000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	v := cfg.Visualizer
	if v.NumBars != 32 || v.Interval != 25*time.Millisecond || v.BlockSize != 4096 {
		t.Errorf("visualizer = %+v", v)
	}
	if v.Window != "Blackman" || v.Aggregate != "max" || v.Spacing != "linear" || v.FFTBackend != "godsp" || v.Loop {
		t.Errorf("visualizer names = %+v", v)
	}
	// Keys absent from the file keep their defaults.
	if v.CalibrationHeadroom != DefaultCalibrationHeadroom {
		t.Errorf("headroom = %v, want default", v.CalibrationHeadroom)
	}
	if cfg.Display.Mode != DisplayLog || !cfg.Transport.WSEnabled || cfg.Transport.WSAddress != ":9000" {
		t.Errorf("display/transport = %+v %+v", cfg.Display, cfg.Transport)
	}
	if cfg.Level() != applog.LevelWarn {
		t.Errorf("Level() = %v, want WARN", cfg.Level())
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV_NUM_BARS", "12")
	t.Setenv("ENV_INTERVAL", "100ms")
	t.Setenv("ENV_BLOCK_SIZE", "1024")
	t.Setenv("ENV_LOOP", "false")
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "127.0.0.1:7000")
	t.Setenv("ENV_WS_ENABLED", "not-a-bool")

	path := writeTempConfig(t, "visualizer:\n  num_bars: 40\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	v := cfg.Visualizer
	if v.NumBars != 12 {
		t.Errorf("num_bars = %d, env must win over the file", v.NumBars)
	}
	if v.Interval != 100*time.Millisecond || v.BlockSize != 1024 || v.Loop {
		t.Errorf("visualizer = %+v", v)
	}
	if !cfg.Debug || cfg.Level() != applog.LevelDebug {
		t.Error("ENV_DEBUG not applied")
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "127.0.0.1:7000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Transport.WSEnabled {
		t.Error("unparsable ENV_WS_ENABLED should be ignored")
	}
}

func TestLoadConfig_LeavesValidationToCaller(t *testing.T) {
	t.Setenv("ENV_NUM_BARS", "1500")

	cfg, err := LoadConfig(writeTempConfig(t, "visualizer:\n  block_size: 2048\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Visualizer.NumBars != 1500 {
		t.Fatalf("num_bars = %d, want 1500", cfg.Visualizer.NumBars)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want ErrInvalidConfig for 1500 bars of 1024 bins", err)
	}

	cfg.Visualizer.BlockSize = 4096
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after raising block_size = %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Zero bars", func(c *Config) { c.Visualizer.NumBars = 0 }},
		{"Too many bars", func(c *Config) { c.Visualizer.NumBars = c.Visualizer.BlockSize/2 + 1 }},
		{"Zero interval", func(c *Config) { c.Visualizer.Interval = 0 }},
		{"Block not power of two", func(c *Config) { c.Visualizer.BlockSize = 3000 }},
		{"Block too small", func(c *Config) { c.Visualizer.BlockSize = 128 }},
		{"Block too large", func(c *Config) { c.Visualizer.BlockSize = 32768 }},
		{"Unknown window", func(c *Config) { c.Visualizer.Window = "kaiser" }},
		{"Unknown aggregate", func(c *Config) { c.Visualizer.Aggregate = "median" }},
		{"Unknown spacing", func(c *Config) { c.Visualizer.Spacing = "mel" }},
		{"Unknown backend", func(c *Config) { c.Visualizer.FFTBackend = "fftw" }},
		{"Zero headroom", func(c *Config) { c.Visualizer.CalibrationHeadroom = 0 }},
		{"Zero floor", func(c *Config) { c.Visualizer.CalibrationFloor = 0 }},
		{"Unknown display", func(c *Config) { c.Display.Mode = "gui" }},
		{"Unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"UDP without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}},
		{"WS without address", func(c *Config) {
			c.Transport.WSEnabled = true
			c.Transport.WSAddress = ""
		}},
	}

	if err := NewConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestValidateSuggestsPowerOfTwo(t *testing.T) {
	t.Parallel()
	cfg := NewConfig()
	cfg.Visualizer.BlockSize = 3000
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "try 4096") {
		t.Errorf("Validate() = %v, want a hint towards 4096", err)
	}
}
