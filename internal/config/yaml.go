// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	applog "barviz/internal/log"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is
// given.
const DefaultConfigFile = "config.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it looks for DefaultConfigFile and falls back to built-in
// defaults when it is absent. Environment overrides are applied after the
// file. The result is not validated: callers apply their own overrides, such
// as command-line flags, and then call Validate.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides reads the ENV_* variables. Values that fail to parse
// are logged and ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_{...}
	// These are general overrides.

	envBool("ENV_DEBUG", &cfg.Debug)
	envString("ENV_LOG_LEVEL", &cfg.LogLevel)

	// ENV_{...}
	// These are specific to the visualizer.

	envInt("ENV_NUM_BARS", &cfg.Visualizer.NumBars)
	envDuration("ENV_INTERVAL", &cfg.Visualizer.Interval)
	envInt("ENV_BLOCK_SIZE", &cfg.Visualizer.BlockSize)
	envBool("ENV_LOOP", &cfg.Visualizer.Loop)

	// ENV_UDP_{...}, ENV_WS_{...}
	// These are specific to the transport layer.

	envBool("ENV_UDP_ENABLED", &cfg.Transport.UDPEnabled)
	envString("ENV_UDP_TARGET_ADDRESS", &cfg.Transport.UDPTargetAddress)
	envBool("ENV_WS_ENABLED", &cfg.Transport.WSEnabled)
	envString("ENV_WS_ADDRESS", &cfg.Transport.WSAddress)
}

func envString(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok {
		*dst = val
		applog.Infof("Config: Overriding from %s: %s", name, val)
	}
}

func envBool(name string, dst *bool) {
	if val, ok := os.LookupEnv(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			applog.Warnf("Config: Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = b
		applog.Infof("Config: Overriding from %s: %v", name, b)
	}
}

func envInt(name string, dst *int) {
	if val, ok := os.LookupEnv(name); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			applog.Warnf("Config: Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = n
		applog.Infof("Config: Overriding from %s: %d", name, n)
	}
}

func envDuration(name string, dst *time.Duration) {
	if val, ok := os.LookupEnv(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			applog.Warnf("Config: Ignoring %s=%q: %v", name, val, err)
			return
		}
		*dst = d
		applog.Infof("Config: Overriding from %s: %s", name, d)
	}
}
