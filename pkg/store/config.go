// Package store provides crash-tolerant persistence for series and match state
package store

import "errors"

var (
	// ErrDirRequired is returned when the store directory is not provided
	ErrDirRequired = errors.New("store directory is required")
)

// Config holds cache store configuration
type Config struct {
	// Dir is the directory holding the persisted tables
	Dir string `yaml:"dir" default:"cache"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dir == "" {
		return ErrDirRequired
	}

	return nil
}
