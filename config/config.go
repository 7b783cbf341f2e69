// CLAUDE:SUMMARY YAML config for browser, recording, harness, gateway and journal, with strict decoding and defaults.
// Package config loads the journey YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Recording RecordingConfig `yaml:"recording"`
	Harness   HarnessConfig   `yaml:"harness"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Journal   JournalConfig   `yaml:"journal"`
}

// BrowserConfig controls the recording browser.
type BrowserConfig struct {
	Remote            string        `yaml:"remote"` // CDP URL of an external Chrome
	Bin               string        `yaml:"bin"`
	Headless          bool          `yaml:"headless"`
	XvfbDisplay       string        `yaml:"xvfb_display"`
	Stealth           bool          `yaml:"stealth"`
	NavigateTimeout   time.Duration `yaml:"navigate_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// RecordingConfig controls script synthesis and event buffering.
type RecordingConfig struct {
	JourneyName string `yaml:"journey_name"`
	EventBuffer int    `yaml:"event_buffer"`
}

// HarnessConfig controls the journey runner process.
type HarnessConfig struct {
	Command []string      `yaml:"command"`
	Dir     string        `yaml:"dir"`
	Env     []string      `yaml:"env"`
	Timeout time.Duration `yaml:"timeout"` // 0: no limit
}

// GatewayConfig controls the HTTP listener and saved journeys.
type GatewayConfig struct {
	Listen  string `yaml:"listen"`
	SaveDir string `yaml:"save_dir"`
}

// JournalConfig locates the history database. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Browser.HeartbeatInterval <= 0 {
		c.Browser.HeartbeatInterval = 2 * time.Second
	}
	if c.Recording.EventBuffer <= 0 {
		c.Recording.EventBuffer = 1024
	}
	if len(c.Harness.Command) == 0 {
		c.Harness.Command = []string{"npx", "@elastic/synthetics"}
	}
	if c.Harness.Dir == "" {
		c.Harness.Dir = filepath.Join(os.TempDir(), "journey")
	}
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = "127.0.0.1:8095"
	}
	if c.Gateway.SaveDir == "" {
		c.Gateway.SaveDir = "."
	}
}

func (c *Config) validate() error {
	if c.Browser.Remote != "" && c.Browser.XvfbDisplay != "" {
		return fmt.Errorf("config: browser.remote and browser.xvfb_display are exclusive")
	}
	if c.Harness.Timeout < 0 {
		return fmt.Errorf("config: harness.timeout must not be negative")
	}
	return nil
}
