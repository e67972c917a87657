// Package config loads rfpchat configuration from ~/.rfpchat/config.json
// with RFPCHAT_* environment variables taking precedence. A missing file is
// not an error; defaults apply.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the whole client configuration.
type Config struct {
	// BaseURL is the backend address. Defaults to the development host.
	BaseURL string `json:"base_url,omitempty"`

	// Theme selects the TUI color scheme ("light" or "dark"; empty means
	// auto-detect).
	Theme string `json:"theme,omitempty"`

	// HTTPTimeoutSeconds bounds each network round trip. Document ingestion
	// can take a while, so the default is generous.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds,omitempty"`

	// DebugMode enables category file logging under ~/.rfpchat/logs/.
	DebugMode bool `json:"debug_mode,omitempty"`
}

const (
	defaultBaseURL        = "http://localhost:8000"
	defaultTimeoutSeconds = 120
)

// Dir returns the rfpchat configuration directory (~/.rfpchat), creating
// nothing.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rfpchat"
	}
	return filepath.Join(home, ".rfpchat")
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads the config file at path, fills in defaults, and applies
// environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadOrDefault loads from the default path, swallowing errors into a
// default config. Used by the TUI where a broken config file should not
// prevent startup.
func LoadOrDefault() *Config {
	cfg, err := Load(DefaultPath())
	if err != nil {
		cfg = &Config{}
		cfg.applyDefaults()
		cfg.applyEnvOverrides()
	}
	return cfg
}

// HTTPTimeout returns the round-trip bound as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = defaultTimeoutSeconds
	}
}

// Environment variables override file values so deployments can point a
// packaged binary at another backend without editing files.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RFPCHAT_SERVER"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("RFPCHAT_THEME"); v != "" {
		c.Theme = v
	}
	if v := os.Getenv("RFPCHAT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.HTTPTimeoutSeconds = n
		}
	}
	if v := os.Getenv("RFPCHAT_DEBUG"); v != "" {
		c.DebugMode = v == "1" || v == "true"
	}
}
