// Package config loads the watchlist TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config is the application configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Session SessionConfig `toml:"session"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig describes the backend connection.
type APIConfig struct {
	URL       string   `toml:"url"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
}

// SessionConfig controls where the session is persisted.
type SessionConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls the log sink.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration embedded in the binary.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// DefaultPath returns <user config dir>/watchlist/config.toml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config.DefaultPath: %w", err)
	}
	return filepath.Join(base, "watchlist", "config.toml"), nil
}

// Load reads path over the defaults, then applies environment overrides.
// With an empty path the default location is used and may be absent. The
// result is not validated so callers can apply their own overrides first and
// then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	// A missing file at the default location is fine.
	if _, err := toml.DecodeFile(path, cfg); err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("config.Load %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides settings from WATCHLIST_* variables.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("WATCHLIST_API_URL"); v != "" {
		c.API.URL = v
	}
	if v := getenv("WATCHLIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("WATCHLIST_SESSION_DIR"); v != "" {
		c.Session.Dir = v
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.url must be an http(s) URL, got %q", c.API.URL)
	}
	if c.API.Timeout.Duration < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// SessionDir resolves the session directory.
func (c *Config) SessionDir() (string, error) {
	if c.Session.Dir != "" {
		return c.Session.Dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config.SessionDir: %w", err)
	}
	return filepath.Join(base, "watchlist"), nil
}

// LogFile resolves the log file path.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := c.SessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watchlist.log"), nil
}

// CreateFile writes the example configuration to path. It refuses to
// overwrite an existing file.
func CreateFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, exampleConf, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
