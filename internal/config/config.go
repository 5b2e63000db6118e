// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

type Config struct {
	FPS         int           `yaml:"fps"`
	KeyStrategy string        `yaml:"key_strategy"` // identity, timeline
	Collision   string        `yaml:"collision"`    // last, first
	FailOnEmpty bool          `yaml:"fail_on_empty"`
	Output      OutputConfig  `yaml:"output"`
	Logging     LoggingConfig `yaml:"logging"`
	HTTP        HTTPConfig    `yaml:"http"`
	NATS        NATSConfig    `yaml:"nats"`
}

type OutputConfig struct {
	Delimiter string `yaml:"delimiter"`
	Path      string `yaml:"path"` // empty writes to stdout
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type NATSConfig struct {
	URL           string        `yaml:"url"` // empty disables publishing
	Subject       string        `yaml:"subject"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// SupportedRates lists the frame rates accepted for fps.
var SupportedRates = []int{23, 24, 25, 29, 30, 48, 50, 59, 60}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FPS == 0 {
		c.FPS = 25
	}
	if c.KeyStrategy == "" {
		c.KeyStrategy = "identity"
	}
	if c.Collision == "" {
		c.Collision = "last"
	}
	if c.Output.Delimiter == "" {
		c.Output.Delimiter = ","
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = 8 << 20
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "edl.changelog"
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = 2 * time.Second
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if !IsSupportedRate(c.FPS) {
		return fmt.Errorf("fps %d is not supported (want one of %v)", c.FPS, SupportedRates)
	}
	switch strings.ToLower(c.KeyStrategy) {
	case "identity", "timeline":
	default:
		return fmt.Errorf("key_strategy must be identity or timeline, got %q", c.KeyStrategy)
	}
	switch strings.ToLower(c.Collision) {
	case "last", "first":
	default:
		return fmt.Errorf("collision must be last or first, got %q", c.Collision)
	}
	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		return fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter)
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must not be negative")
	}
	return nil
}

// Delimiter returns the output delimiter as a rune.
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.Output.Delimiter)
	return r
}

// IsSupportedRate reports whether fps is one of SupportedRates.
func IsSupportedRate(fps int) bool {
	for _, r := range SupportedRates {
		if r == fps {
			return true
		}
	}
	return false
}
