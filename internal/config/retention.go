package config

import (
	"fmt"
)

// RetentionConfig holds configuration for run history pruning
type RetentionConfig struct {
	// Keep is the number of most recent runs kept in the history database.
	// Default: 500, Range: 0-100000
	// 0 = keep everything
	Keep int `yaml:"keep"`
}

// DefaultRetentionConfig returns the default retention configuration
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		Keep: 500,
	}
}

// Validate checks if the configuration has valid values
func (c RetentionConfig) Validate() error {
	if c.Keep < 0 || c.Keep > 100000 {
		return fmt.Errorf("retention.keep must be between 0 and 100000 (got %d)", c.Keep)
	}
	return nil
}
