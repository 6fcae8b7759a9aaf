package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	// DBPath is the SQLite file holding the shared store. Multiple instances
	// may point at the same file.
	DBPath string
	// LogMode selects logger output: "off", "dev" or "prod". The interactive
	// shell defaults to "off" so log lines don't interleave with prompts.
	LogMode string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		DBPath:  getenvWithDefault("SIJATOOLS_DB", "sijatools.db"),
		LogMode: getenvWithDefault("SIJATOOLS_LOG", "off"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that configuration fields hold usable values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.DBPath == "" {
		return errors.New("SIJATOOLS_DB must not be empty")
	}
	switch c.LogMode {
	case "off", "dev", "prod":
	default:
		return fmt.Errorf("SIJATOOLS_LOG must be one of off, dev, prod (got %q)", c.LogMode)
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
