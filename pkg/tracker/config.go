// Package tracker runs the poll loop: fetch the live feed, correlate
// snapshots into series, detect disappearances and hand them to enrichment
package tracker

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidActiveInterval is returned when the active poll bounds are inverted
	ErrInvalidActiveInterval = errors.New("active interval max must be greater than min")
	// ErrInvalidIdleSchedule is returned when the idle schedule cannot be parsed
	ErrInvalidIdleSchedule = errors.New("invalid idle schedule")
)

// Config defines tracker configuration
type Config struct {
	// IdleSchedule is the poll cadence while no matches are live
	IdleSchedule string `yaml:"idleSchedule" default:"@every 5m"`

	// Active polling is randomized inside [min, max] so the feed never sees
	// a fixed-period client
	ActiveIntervalMin time.Duration `yaml:"activeIntervalMin" default:"8s"`
	ActiveIntervalMax time.Duration `yaml:"activeIntervalMax" default:"11s"`
}

// Validate checks if the tracker configuration is valid
func (c *Config) Validate() error {
	if c.ActiveIntervalMin <= 0 || c.ActiveIntervalMax <= c.ActiveIntervalMin {
		return ErrInvalidActiveInterval
	}

	if _, err := parseScheduleInterval(c.IdleSchedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdleSchedule, err)
	}

	return nil
}

// IdleInterval returns the parsed idle poll interval
func (c *Config) IdleInterval() time.Duration {
	interval, err := parseScheduleInterval(c.IdleSchedule)
	if err != nil {
		// Validate rejects unparseable schedules before the service starts
		return 5 * time.Minute
	}

	return interval
}

// ActiveInterval returns a randomized interval inside the active bounds
func (c *Config) ActiveInterval() time.Duration {
	span := int64(c.ActiveIntervalMax - c.ActiveIntervalMin)

	jitterBig, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return c.ActiveIntervalMin
	}

	return c.ActiveIntervalMin + time.Duration(jitterBig.Int64())
}

// parseScheduleInterval converts a cron schedule string to a duration
// Supports @every format (e.g., "@every 30s", "@every 5m")
func parseScheduleInterval(schedule string) (time.Duration, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule format: %w", err)
	}

	if len(schedule) > 7 && schedule[:6] == "@every" {
		duration, err := time.ParseDuration(schedule[7:])
		if err != nil {
			return 0, fmt.Errorf("failed to parse @every duration: %w", err)
		}

		return duration, nil
	}

	// For standard cron expressions, calculate next two runs and get interval
	now := time.Now()
	next1 := sched.Next(now)
	next2 := sched.Next(next1)

	return next2.Sub(next1), nil
}
