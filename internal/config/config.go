// Package config loads the planner service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// UserConfig holds one set of Basic Auth credentials for the bundled
// in-memory authenticator.
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DBPath is the SQLite database file. Empty selects the in-memory
	// demo store, which loses all data on restart.
	DBPath string `yaml:"db_path"`

	// Realm is the Basic Auth realm presented to clients.
	Realm string `yaml:"realm"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Users are the accounts known to the in-memory authenticator.
	Users []UserConfig `yaml:"users"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   "127.0.0.1:4000",
		Realm:    "Planner",
		LogLevel: "info",
	}
}

// Load reads the configuration at path. A missing file yields the default
// configuration and writes it to path with 0600 permissions, so a first
// run leaves an editable template behind.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path. Credentials live in this file, hence 0600.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("config: user %d has no username", i)
		}
	}
	return nil
}
