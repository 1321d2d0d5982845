// Package detail provides the secondary post-match detail client
package detail

import "time"

// Config holds detail client configuration
type Config struct {
	BaseURL string        `yaml:"baseUrl" default:"https://api.opendota.com/api"`
	Timeout time.Duration `yaml:"timeout" default:"15s"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return nil
}
