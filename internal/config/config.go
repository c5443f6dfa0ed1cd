package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of the itsdb command.
type Config struct {
	// Default profile directory when a command doesn't name one.
	ProfileDir string `yaml:"profile_dir"`
	// Encoding of table files.
	Encoding string `yaml:"encoding"`
	// Gzip table files written by commands.
	Gzip bool `yaml:"gzip"`
	// Uncommitted rows per table kept by process before committing.
	BufferSize int `yaml:"buffer_size"`
	// Path of the line offset catalog; empty disables it.
	CatalogPath string `yaml:"catalog_path"`
	// debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Encoding:   "utf-8",
		BufferSize: 1000,
		LogLevel:   "info",
	}
}

// Load reads a YAML config file. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if dir := os.Getenv("ITSDB_PROFILE"); dir != "" {
		c.ProfileDir = dir
	}
	if path := os.Getenv("ITSDB_CATALOG"); path != "" {
		c.CatalogPath = path
	}
	if s := os.Getenv("ITSDB_BUFFER_SIZE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid ITSDB_BUFFER_SIZE %q: %w", s, err)
		}
		c.BufferSize = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must not be negative, got %d", c.BufferSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
