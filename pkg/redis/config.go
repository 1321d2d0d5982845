// Package redis provides Redis client configuration shared by the
// enrichment queue and its cancellation flags
package redis

import (
	"errors"
	"fmt"
)

var (
	// ErrURLRequired is returned when the Redis URL is not provided
	ErrURLRequired = errors.New("redis URL is required")
)

// Config holds Redis client configuration
type Config struct {
	URL    string `yaml:"url" default:"redis://localhost:6379/0"`
	Prefix string `yaml:"prefix" default:"seriesd"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	if c.Prefix == "" {
		c.Prefix = "seriesd"
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}
