package grading

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds worker pool parameters.
type Config struct {
	// PoolSize caps concurrent grading calls.
	PoolSize int `toml:"pool_size"`
	// MaxRetries is the number of additional attempts after a failed one.
	MaxRetries int `toml:"max_retries"`
	// TaskTimeout bounds a single grading attempt.
	TaskTimeout time.Duration `toml:"task_timeout"`
	// SubBatchPageLimit cuts oversized segments into smaller tasks.
	SubBatchPageLimit int `toml:"sub_batch_page_limit"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	PoolSize          string
	MaxRetries        string
	TaskTimeout       string
	SubBatchPageLimit string
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
	if overlay.PoolSize != 0 {
		c.PoolSize = overlay.PoolSize
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.TaskTimeout != 0 {
		c.TaskTimeout = overlay.TaskTimeout
	}
	if overlay.SubBatchPageLimit != 0 {
		c.SubBatchPageLimit = overlay.SubBatchPageLimit
	}
}

func (c *Config) loadDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = max(min(runtime.NumCPU(), 4), 1)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = 2 * time.Minute
	}
	if c.SubBatchPageLimit == 0 {
		c.SubBatchPageLimit = 8
	}
}

func (c *Config) loadEnv(env *Env) {
	setInt := func(envVar string, target *int) {
		if envVar == "" {
			return
		}
		if v := os.Getenv(envVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}

	setInt(env.PoolSize, &c.PoolSize)
	setInt(env.MaxRetries, &c.MaxRetries)
	setInt(env.SubBatchPageLimit, &c.SubBatchPageLimit)

	if env.TaskTimeout != "" {
		if v := os.Getenv(env.TaskTimeout); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				c.TaskTimeout = dur
			}
		}
	}
}

func (c *Config) validate() error {
	if c.PoolSize < 1 {
		return fmt.Errorf("pool_size must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be positive")
	}
	if c.SubBatchPageLimit < 1 {
		return fmt.Errorf("sub_batch_page_limit must be positive")
	}
	return nil
}
