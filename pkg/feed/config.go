// Package feed provides the live match feed client
package feed

import (
	"errors"
	"time"
)

var (
	// ErrAPIKeyRequired is returned when the feed API key is not provided
	ErrAPIKeyRequired = errors.New("feed API key is required")
	// ErrNoLeagues is returned when no leagues are configured for polling
	ErrNoLeagues = errors.New("at least one league must be configured")
)

// LeagueConfig identifies a league to poll
type LeagueConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Config holds live feed client configuration
type Config struct {
	BaseURL string         `yaml:"baseUrl" default:"https://api.steampowered.com/IDOTA2Match_570/GetLiveLeagueGames/v1/"`
	APIKey  string         `yaml:"apiKey"`
	Timeout time.Duration  `yaml:"timeout" default:"10s"`
	Leagues []LeagueConfig `yaml:"leagues"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrAPIKeyRequired
	}

	if len(c.Leagues) == 0 {
		return ErrNoLeagues
	}

	return nil
}

// LeagueName returns the configured display name for a league ID
func (c *Config) LeagueName(id int64) string {
	for _, l := range c.Leagues {
		if l.ID == id {
			return l.Name
		}
	}

	return ""
}
