// Package enrichment schedules bounded, delayed detail fetches for matches
// believed finished
package enrichment

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrInvalidDelays is returned when the second delay does not follow the first
	ErrInvalidDelays = errors.New("second attempt delay must be after the first")
)

// Config defines enrichment scheduler configuration
type Config struct {
	Queue       string        `yaml:"queue" default:"enrichment"`
	Concurrency int           `yaml:"concurrency" default:"5"`
	// Delays are measured from the moment the disappearance was detected.
	// The secondary source lags the live feed by single-digit seconds, so
	// two fixed attempts bound the work for matches it never indexes.
	FirstDelay  time.Duration `yaml:"firstDelay" default:"2s"`
	SecondDelay time.Duration `yaml:"secondDelay" default:"10s"`

	AttemptTimeout time.Duration `yaml:"attemptTimeout" default:"30s"`
	// CancelFlagTTL bounds how long a reappearance cancellation flag lives
	CancelFlagTTL time.Duration `yaml:"cancelFlagTTL" default:"10m"`
}

// Validate checks if the enrichment configuration is valid
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.SecondDelay <= c.FirstDelay {
		return ErrInvalidDelays
	}

	return nil
}
