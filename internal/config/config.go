// Package config loads Steward's optional YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is used for XDG directory paths.
	AppName = "steward"

	// DefaultBaseURL is the static origin serving hashes.json, analysis/ and snapshots/.
	DefaultBaseURL = "https://raw.githubusercontent.com/Thomas-Amann-IPAustralia/ai-steward-dashboard/main"

	// DefaultTimeout bounds each HTTP request. The dashboard core has no timeouts
	// of its own; this is the transport's.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond spaces out bursts from key repeat.
	DefaultRequestsPerSecond = 10.0

	// DefaultBurst allows the manifest plus both artifacts to go out at once.
	DefaultBurst = 4

	// DefaultLogLevel for the file logger.
	DefaultLogLevel = "info"
)

// Config is the persistent application configuration
type Config struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	LogLevel          string        `yaml:"log_level"`
	EventLog          bool          `yaml:"event_log"` // write JSONL events next to the log file
	Theme             string        `yaml:"theme"`     // glamour style: "dark", "light", "notty"
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
		LogLevel:          DefaultLogLevel,
		Theme:             "dark",
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// LogDir returns the directory for log and event files.
func LogDir() string {
	return filepath.Join(xdg.StateHome, AppName, "logs")
}

// EventLogPath returns the JSONL event log written when EventLog is set.
func EventLogPath() string {
	return filepath.Join(LogDir(), "events.jsonl")
}

// Load reads config from path, or returns defaults when the file does not
// exist. An empty path means ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", c.Burst)
	}
	return nil
}
