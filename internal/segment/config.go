package segment

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds boundary detection parameters. The signal weights are
// deliberately configuration rather than constants; the balance between
// monotonicity cleanliness and question-count match is a tuning concern.
type Config struct {
	MonotonicityWeight float64 `toml:"monotonicity_weight"`
	CountMatchWeight   float64 `toml:"count_match_weight"`
	UnknownPagePenalty float64 `toml:"unknown_page_penalty"`
	AmbiguityCap       float64 `toml:"ambiguity_cap"`
	MaxPagesPerSegment int     `toml:"max_pages_per_segment"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MonotonicityWeight string
	CountMatchWeight   string
	UnknownPagePenalty string
	AmbiguityCap       string
	MaxPagesPerSegment string
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
	if overlay.MonotonicityWeight != 0 {
		c.MonotonicityWeight = overlay.MonotonicityWeight
	}
	if overlay.CountMatchWeight != 0 {
		c.CountMatchWeight = overlay.CountMatchWeight
	}
	if overlay.UnknownPagePenalty != 0 {
		c.UnknownPagePenalty = overlay.UnknownPagePenalty
	}
	if overlay.AmbiguityCap != 0 {
		c.AmbiguityCap = overlay.AmbiguityCap
	}
	if overlay.MaxPagesPerSegment != 0 {
		c.MaxPagesPerSegment = overlay.MaxPagesPerSegment
	}
}

func (c *Config) loadDefaults() {
	if c.MonotonicityWeight == 0 {
		c.MonotonicityWeight = 0.6
	}
	if c.CountMatchWeight == 0 {
		c.CountMatchWeight = 0.4
	}
	if c.UnknownPagePenalty == 0 {
		c.UnknownPagePenalty = 0.1
	}
	if c.AmbiguityCap == 0 {
		c.AmbiguityCap = 0.45
	}
	if c.MaxPagesPerSegment == 0 {
		c.MaxPagesPerSegment = 12
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

	setFloat(env.MonotonicityWeight, &c.MonotonicityWeight)
	setFloat(env.CountMatchWeight, &c.CountMatchWeight)
	setFloat(env.UnknownPagePenalty, &c.UnknownPagePenalty)
	setFloat(env.AmbiguityCap, &c.AmbiguityCap)

	if env.MaxPagesPerSegment != "" {
		if v := os.Getenv(env.MaxPagesPerSegment); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxPagesPerSegment = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.MonotonicityWeight < 0 || c.CountMatchWeight < 0 {
		return fmt.Errorf("signal weights must be non-negative")
	}
	if c.MonotonicityWeight+c.CountMatchWeight == 0 {
		return fmt.Errorf("at least one signal weight must be positive")
	}
	if c.AmbiguityCap < 0 || c.AmbiguityCap > 1 {
		return fmt.Errorf("ambiguity_cap must be between 0 and 1")
	}
	if c.MaxPagesPerSegment < 0 {
		return fmt.Errorf("max_pages_per_segment must not be negative")
	}
	return nil
}
