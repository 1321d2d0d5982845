package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dotalive/seriesd/pkg/api"
	"github.com/dotalive/seriesd/pkg/detail"
	"github.com/dotalive/seriesd/pkg/enrichment"
	"github.com/dotalive/seriesd/pkg/feed"
	"github.com/dotalive/seriesd/pkg/observability"
	"github.com/dotalive/seriesd/pkg/series"
	"github.com/dotalive/seriesd/pkg/store"
	"github.com/dotalive/seriesd/pkg/tracker"
)

// Application encapsulates the daemon lifecycle
type Application struct {
	config *Config
	logger *logrus.Logger

	store    *store.Store
	enricher enrichment.Service
	tracker  tracker.Service
	api      api.Service

	healthServer *http.Server
	pprofServer  *http.Server
}

// NewApplication creates a new daemon application
func NewApplication(cfg *Config, logger *logrus.Logger) *Application {
	return &Application{
		config: cfg,
		logger: logger,
	}
}

// Start initializes and starts all services
func (a *Application) Start() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.logger.Info("Starting series tracker...")

	observability.StartMetricsServer(a.logger, a.config.MetricsAddr)

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	redisOpt, err := redis.ParseURL(a.config.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	st, err := store.Open(a.logger, &a.config.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.store = st

	feedClient, err := feed.NewClient(a.logger, &a.config.Feed)
	if err != nil {
		return fmt.Errorf("failed to create feed client: %w", err)
	}

	detailClient, err := detail.NewClient(a.logger, &a.config.Detail)
	if err != nil {
		return fmt.Errorf("failed to create detail client: %w", err)
	}

	correlator, err := series.NewCorrelator(a.logger, &a.config.Series)
	if err != nil {
		return fmt.Errorf("failed to create correlator: %w", err)
	}

	publisher := tracker.NewLogPublisher(a.logger)

	enricher, err := enrichment.NewService(a.logger, &a.config.Enrichment, &a.config.Redis, redisOpt, st, detailClient, publisher)
	if err != nil {
		return fmt.Errorf("failed to create enrichment service: %w", err)
	}
	a.enricher = enricher

	trackerService, err := tracker.NewService(a.logger, &a.config.Tracker, feedClient, correlator, st, enricher, publisher)
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	a.tracker = trackerService

	a.api = api.NewService(&a.config.API, st, enricher, a.logger)

	ctx := context.Background()

	if err := a.enricher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start enrichment service: %w", err)
	}

	if err := a.tracker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}

	if err := a.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API service: %w", err)
	}

	a.logger.Info("Series tracker started successfully")

	return nil
}

// Stop gracefully shuts down all services in reverse start order
func (a *Application) Stop() error {
	a.logger.Info("Shutting down series tracker...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.healthServer != nil {
		if err := a.healthServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Failed to shutdown health check server")
		}
	}

	if a.pprofServer != nil {
		if err := a.pprofServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("Failed to shutdown pprof server")
		}
	}

	if a.api != nil {
		if err := a.api.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping API service")
		}
	}

	if a.tracker != nil {
		if err := a.tracker.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping tracker")
		}
	}

	if a.enricher != nil {
		if err := a.enricher.Stop(); err != nil {
			a.logger.WithError(err).Error("Error stopping enrichment service")
		}
	}

	return nil
}

func (a *Application) startHealthCheck() {
	a.logger.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if a.tracker != nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("READY"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
		}
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Application) startPProf() {
	a.logger.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Pprof server failed")
		}
	}()
}
