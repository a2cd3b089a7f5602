package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds engine-level parameters: review gate policy, event buffering,
// and the working directory for fetched documents and rendered pages.
type Config struct {
	// RubricReviewThreshold suspends at the rubric gate when the parse
	// self-report confidence falls below it.
	RubricReviewThreshold float64 `toml:"rubric_review_threshold"`
	// MandatoryRubricReview always suspends at the rubric gate.
	MandatoryRubricReview bool `toml:"mandatory_rubric_review"`
	// MandatoryResultReview always suspends at the result gate.
	MandatoryResultReview bool `toml:"mandatory_result_review"`
	// EventBuffer is the per-subscriber progress event buffer size.
	EventBuffer int `toml:"event_buffer"`
	// WorkDir roots the per-run working directories. The per-run path is
	// derived from the run id so a restarted process finds the same files.
	WorkDir string `toml:"work_dir"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	RubricReviewThreshold string
	MandatoryRubricReview string
	MandatoryResultReview string
	EventBuffer           string
	WorkDir               string
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
	if overlay.RubricReviewThreshold != 0 {
		c.RubricReviewThreshold = overlay.RubricReviewThreshold
	}
	if overlay.MandatoryRubricReview {
		c.MandatoryRubricReview = true
	}
	if overlay.MandatoryResultReview {
		c.MandatoryResultReview = true
	}
	if overlay.EventBuffer != 0 {
		c.EventBuffer = overlay.EventBuffer
	}
	if overlay.WorkDir != "" {
		c.WorkDir = overlay.WorkDir
	}
}

// RunDir returns the deterministic working directory for a run id.
func (c *Config) RunDir(id string) string {
	return filepath.Join(c.WorkDir, id)
}

func (c *Config) loadDefaults() {
	if c.RubricReviewThreshold == 0 {
		c.RubricReviewThreshold = 0.7
	}
	if c.EventBuffer == 0 {
		c.EventBuffer = 256
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "gradeflow")
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.RubricReviewThreshold != "" {
		if v := os.Getenv(env.RubricReviewThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.RubricReviewThreshold = f
			}
		}
	}
	setBool := func(envVar string, target *bool) {
		if envVar == "" {
			return
		}
		if v := os.Getenv(envVar); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*target = b
			}
		}
	}
	setBool(env.MandatoryRubricReview, &c.MandatoryRubricReview)
	setBool(env.MandatoryResultReview, &c.MandatoryResultReview)

	if env.EventBuffer != "" {
		if v := os.Getenv(env.EventBuffer); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.EventBuffer = n
			}
		}
	}
	if env.WorkDir != "" {
		if v := os.Getenv(env.WorkDir); v != "" {
			c.WorkDir = v
		}
	}
}

func (c *Config) validate() error {
	if c.RubricReviewThreshold < 0 || c.RubricReviewThreshold > 1 {
		return fmt.Errorf("rubric_review_threshold must be between 0 and 1")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("event_buffer must be positive")
	}
	return nil
}
