package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval         time.Duration
	MaxReleaseBatchSize int
	MaxExpiryBatchSize  int
	EnabledJobs         []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:         time.Hour,
		MaxReleaseBatchSize: 100,
		MaxExpiryBatchSize:  100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.MaxReleaseBatchSize <= 0 {
		c.MaxReleaseBatchSize = defaults.MaxReleaseBatchSize
	}
	if c.MaxExpiryBatchSize <= 0 {
		c.MaxExpiryBatchSize = defaults.MaxExpiryBatchSize
	}
	return c
}
