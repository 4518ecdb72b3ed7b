// Package config handles heightproj configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/terrain-projector/internal/composite"
	"github.com/Faultbox/terrain-projector/pkg/brush"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all tool settings.
type Config struct {
	Compose ComposeConfig `yaml:"compose"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ComposeConfig holds compositing settings.
type ComposeConfig struct {
	Filter    string `yaml:"filter"`    // bilinear or nearest
	Precision string `yaml:"precision"` // float32 or r16
}

// StorageConfig selects where terrains without an explicit heightmap are kept.
type StorageConfig struct {
	Backend         string `yaml:"backend"` // memory, file or sqlite
	Path            string `yaml:"path"`
	KeepGenerations int    `yaml:"keep_generations"` // sqlite only, 0 keeps all
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Compose: ComposeConfig{
			Filter:    "bilinear",
			Precision: "float32",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// EngineOptions converts the compose section into engine options.
func (c *Config) EngineOptions() (composite.Options, error) {
	filter, err := brush.ParseFilter(c.Compose.Filter)
	if err != nil {
		return composite.Options{}, err
	}
	precision, err := composite.ParsePrecision(c.Compose.Precision)
	if err != nil {
		return composite.Options{}, err
	}
	return composite.Options{Filter: filter, Precision: precision}, nil
}

// Validate checks that every enumerated setting has a known value.
func (c *Config) Validate() error {
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage backend %q needs a path", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.KeepGenerations < 0 {
		return fmt.Errorf("keep_generations must not be negative, got %d", c.Storage.KeepGenerations)
	}
	return nil
}
