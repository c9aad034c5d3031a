package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"barviz/internal/analysis"
	applog "barviz/internal/log"
	"barviz/pkg/bitint"
)

// Core configuration constants that define the boundaries and defaults
// for the visualizer.
const (
	DefaultLogLevel            = "info"
	DefaultNumBars             = 20
	DefaultInterval            = 50 * time.Millisecond
	DefaultBlockSize           = 2048
	DefaultWindow              = "Hann"
	DefaultAggregate           = "mean"
	DefaultSpacing             = "log"
	DefaultFFTBackend          = "gonum"
	DefaultLoop                = true
	DefaultCalibrationHeadroom = 1.5
	DefaultCalibrationFloor    = 1e-3
	DefaultDisplayMode         = DisplayTUI
	DefaultUDPTargetAddress    = "127.0.0.1:9090"
	DefaultWSAddress           = "127.0.0.1:8080"

	// Block size limits (powers of 2)
	MinBlockSize = 256
	MaxBlockSize = 16384
)

// Display modes.
const (
	DisplayTUI  = "tui"
	DisplayLog  = "log"
	DisplayNone = "none"
)

// Commands selected by the CLI.
const (
	CommandRun  = "run"
	CommandInfo = "info"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded
// from YAML and then adjusted by environment variables and flags.
type Config struct {
	Debug      bool             `yaml:"debug"`     // Verbose logging.
	LogLevel   string           `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Visualizer VisualizerConfig `yaml:"visualizer"`
	Display    DisplayConfig    `yaml:"display"`
	Transport  TransportConfig  `yaml:"transport"`

	// Set by the CLI, never read from YAML.
	Command   string `yaml:"-"` // CommandRun, CommandInfo or empty for nothing to do.
	AudioFile string `yaml:"-"` // Path of the audio source.
}

// VisualizerConfig holds the pipeline and render loop settings.
type VisualizerConfig struct {
	NumBars             int           `yaml:"num_bars"`             // Bars per vector.
	Interval            time.Duration `yaml:"interval"`             // Render tick period.
	BlockSize           int           `yaml:"block_size"`           // Samples per transform, a power of 2.
	Window              string        `yaml:"window"`               // Window function name, e.g. "Hann".
	Aggregate           string        `yaml:"aggregate"`            // "mean" or "max".
	Spacing             string        `yaml:"spacing"`              // "log" or "linear".
	FFTBackend          string        `yaml:"fft_backend"`          // "gonum" or "godsp".
	Loop                bool          `yaml:"loop"`                 // Wrap to the start at end of file.
	CalibrationHeadroom float64       `yaml:"calibration_headroom"` // Factor over the first vector's peak.
	CalibrationFloor    float64       `yaml:"calibration_floor"`    // Ceiling for a silent first vector.
}

// DisplayConfig selects how vectors are shown locally.
type DisplayConfig struct {
	Mode      string `yaml:"mode"`      // "tui", "log" or "none".
	Smoothing bool   `yaml:"smoothing"` // Spring-animate bars in the TUI.
	LogFile   string `yaml:"log_file"`  // Log destination while the TUI owns the terminal; empty discards.
}

// TransportConfig holds settings related to sending vectors over the network.
type TransportConfig struct {
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send one packet per tick.
	UDPTargetAddress string `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	WSEnabled        bool   `yaml:"ws_enabled"`         // Serve vectors to WebSocket clients.
	WSAddress        string `yaml:"ws_address"`         // Listen address, e.g. "127.0.0.1:8080".
}

// NewConfig returns a Config holding the built-in defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Visualizer: VisualizerConfig{
			NumBars:             DefaultNumBars,
			Interval:            DefaultInterval,
			BlockSize:           DefaultBlockSize,
			Window:              DefaultWindow,
			Aggregate:           DefaultAggregate,
			Spacing:             DefaultSpacing,
			FFTBackend:          DefaultFFTBackend,
			Loop:                DefaultLoop,
			CalibrationHeadroom: DefaultCalibrationHeadroom,
			CalibrationFloor:    DefaultCalibrationFloor,
		},
		Display: DisplayConfig{
			Mode:      DefaultDisplayMode,
			Smoothing: true,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			WSAddress:        DefaultWSAddress,
		},
	}
}

// Validate checks every setting up front so that band layout and transform
// construction cannot fail once a session has started.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: unknown log_level '%s'", ErrInvalidConfig, c.LogLevel)
	}

	v := &c.Visualizer
	if v.NumBars < 1 {
		return fmt.Errorf("%w: visualizer.num_bars must be at least 1, got %d", ErrInvalidConfig, v.NumBars)
	}
	if v.Interval <= 0 {
		return fmt.Errorf("%w: visualizer.interval must be positive, got %s", ErrInvalidConfig, v.Interval)
	}
	if !bitint.IsPowerOfTwo(v.BlockSize) {
		return fmt.Errorf("%w: visualizer.block_size %d is not a power of 2 (try %d)",
			ErrInvalidConfig, v.BlockSize, bitint.NextPowerOfTwo(v.BlockSize))
	}
	if v.BlockSize < MinBlockSize || v.BlockSize > MaxBlockSize {
		return fmt.Errorf("%w: visualizer.block_size %d outside [%d, %d]", ErrInvalidConfig, v.BlockSize, MinBlockSize, MaxBlockSize)
	}
	if v.NumBars > v.BlockSize/2 {
		return fmt.Errorf("%w: visualizer.num_bars %d exceeds the %d bins of a %d-sample block",
			ErrInvalidConfig, v.NumBars, v.BlockSize/2, v.BlockSize)
	}
	if _, err := analysis.ParseWindowFunc(v.Window); err != nil {
		return fmt.Errorf("%w: visualizer.window: %v", ErrInvalidConfig, err)
	}
	if _, err := analysis.ParseAggregateMode(v.Aggregate); err != nil {
		return fmt.Errorf("%w: visualizer.aggregate: %v", ErrInvalidConfig, err)
	}
	if _, err := analysis.ParseSpacing(v.Spacing); err != nil {
		return fmt.Errorf("%w: visualizer.spacing: %v", ErrInvalidConfig, err)
	}
	if _, err := analysis.ParseBackend(v.FFTBackend); err != nil {
		return fmt.Errorf("%w: visualizer.fft_backend: %v", ErrInvalidConfig, err)
	}
	if v.CalibrationHeadroom <= 0 {
		return fmt.Errorf("%w: visualizer.calibration_headroom must be positive", ErrInvalidConfig)
	}
	if v.CalibrationFloor <= 0 {
		return fmt.Errorf("%w: visualizer.calibration_floor must be positive", ErrInvalidConfig)
	}

	c.Display.Mode = strings.ToLower(c.Display.Mode)
	switch c.Display.Mode {
	case DisplayTUI, DisplayLog, DisplayNone:
	default:
		return fmt.Errorf("%w: unknown display.mode '%s'", ErrInvalidConfig, c.Display.Mode)
	}

	t := &c.Transport
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address '%s': %v", ErrInvalidConfig, t.UDPTargetAddress, err)
		}
	}
	if t.WSEnabled {
		if _, _, err := net.SplitHostPort(t.WSAddress); err != nil {
			return fmt.Errorf("%w: transport.ws_address '%s': %v", ErrInvalidConfig, t.WSAddress, err)
		}
	}

	return nil
}

// Level returns the effective log level. Debug wins over LogLevel.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}
