package aggregate

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds aggregation parameters.
type Config struct {
	// ConfidenceThreshold flags students below it for review.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// PassRatio is the score ratio counted as passing in the class summary.
	PassRatio float64 `toml:"pass_ratio"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ConfidenceThreshold string
	PassRatio           string
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
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.PassRatio != 0 {
		c.PassRatio = overlay.PassRatio
	}
}

func (c *Config) loadDefaults() {
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.6
	}
	if c.PassRatio == 0 {
		c.PassRatio = 0.6
	}
}

func (c *Config) loadEnv(env *Env) {
	setFloat := func(envVar string, target *float64) {
		if envVar == "" {
			return
		}
		if v := os.Getenv(envVar); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*target = f
			}
		}
	}

	setFloat(env.ConfidenceThreshold, &c.ConfidenceThreshold)
	setFloat(env.PassRatio, &c.PassRatio)
}

func (c *Config) validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1")
	}
	if c.PassRatio < 0 || c.PassRatio > 1 {
		return fmt.Errorf("pass_ratio must be between 0 and 1")
	}
	return nil
}
