// Package config holds linkeep's YAML configuration and its defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	DBPath  string        `yaml:"db_path"`
	Listen  string        `yaml:"listen"`
	Browser BrowserConfig `yaml:"browser"`
	Agent   AgentConfig   `yaml:"agent"`
	Capture CaptureConfig `yaml:"capture"`
	Remote  RemoteConfig  `yaml:"remote"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch
	// a local one.
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

// AgentConfig controls agent injection and probing.
type AgentConfig struct {
	// ScriptPath overrides the embedded agent entry script. Injection
	// always resolves the script through this setting.
	ScriptPath string `yaml:"script_path"`
	// PingTimeout bounds the liveness probe.
	PingTimeout time.Duration `yaml:"ping_timeout"`
	// SettleDelay is the wait between injecting and re-probing.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// ExtractTimeout bounds the EXTRACT_PAGE_INFO request.
	ExtractTimeout time.Duration `yaml:"extract_timeout"`
}

// CaptureConfig controls snapshot creation defaults.
type CaptureConfig struct {
	InlineCSS            bool `yaml:"inline_css"`
	ExtractImages        bool `yaml:"extract_images"`
	InlineFonts          bool `yaml:"inline_fonts"`
	RemoveScripts        bool `yaml:"remove_scripts"`
	RemoveHiddenElements bool `yaml:"remove_hidden_elements"`
	// FailClosed turns an internal capture timeout into an error
	// instead of a partial result.
	FailClosed   bool  `yaml:"fail_closed"`
	MaxImageSize int64 `yaml:"max_image_size"`
	// Timeout is the capture's own internal deadline.
	Timeout time.Duration `yaml:"timeout"`
	// HardTimeout bounds the whole snapshot operation. It must stay
	// strictly greater than Timeout so a transport cutoff cannot
	// swallow a partial-but-useful result the agent was about to
	// return.
	HardTimeout time.Duration `yaml:"hard_timeout"`
}

// RemoteConfig points at the bookmark site backend.
type RemoteConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Defaults fills zero values in place.
func (c *Config) Defaults() {
	if c.DBPath == "" {
		c.DBPath = "linkeep.db"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8321"
	}
	if c.Agent.PingTimeout <= 0 {
		c.Agent.PingTimeout = time.Second
	}
	if c.Agent.SettleDelay <= 0 {
		c.Agent.SettleDelay = 300 * time.Millisecond
	}
	if c.Agent.ExtractTimeout <= 0 {
		c.Agent.ExtractTimeout = 5 * time.Second
	}
	if c.Capture.MaxImageSize <= 0 {
		c.Capture.MaxImageSize = 5 << 20
	}
	if c.Capture.Timeout <= 0 {
		c.Capture.Timeout = 30 * time.Second
	}
	if c.Capture.HardTimeout <= c.Capture.Timeout {
		c.Capture.HardTimeout = c.Capture.Timeout + 5*time.Second
	}
}

// Load reads a YAML config file and applies defaults. A missing path
// yields the pure defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Defaults()
	return &cfg, nil
}
