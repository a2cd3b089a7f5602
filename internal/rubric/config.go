package rubric

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds rubric parsing parameters.
type Config struct {
	// BatchSize is the fixed number of rubric pages per extraction call.
	BatchSize int `toml:"batch_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BatchSize string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.BatchSize != 0 {
		c.BatchSize = overlay.BatchSize
	}
}

func (c *Config) loadDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 4
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BatchSize != "" {
		if v := os.Getenv(env.BatchSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.BatchSize = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}
