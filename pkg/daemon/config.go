// Package daemon assembles the feed client, correlator, store, enrichment
// scheduler and API into one runnable application
package daemon

import (
	"github.com/dotalive/seriesd/pkg/api"
	"github.com/dotalive/seriesd/pkg/detail"
	"github.com/dotalive/seriesd/pkg/enrichment"
	"github.com/dotalive/seriesd/pkg/feed"
	r "github.com/dotalive/seriesd/pkg/redis"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
	"github.com/dotalive/seriesd/pkg/tracker"
)

// Config represents the complete daemon configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info" validate:"oneof=panic fatal warn info debug trace"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9090"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`

	// Dependencies
	Feed   feed.Config   `yaml:"feed"`
	Detail detail.Config `yaml:"detail"`
	Redis  r.Config      `yaml:"redis"`
	Store  store.Config  `yaml:"store"`

	// Pipeline
	Series     series.Config     `yaml:"series"`
	Enrichment enrichment.Config `yaml:"enrichment"`
	Tracker    tracker.Config    `yaml:"tracker"`
	API        api.Config        `yaml:"api"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Feed.Validate(); err != nil {
		return err
	}

	if err := c.Detail.Validate(); err != nil {
		return err
	}

	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if err := c.Store.Validate(); err != nil {
		return err
	}

	if err := c.Series.Validate(); err != nil {
		return err
	}

	if err := c.Enrichment.Validate(); err != nil {
		return err
	}

	if err := c.Tracker.Validate(); err != nil {
		return err
	}

	return c.API.Validate()
}
