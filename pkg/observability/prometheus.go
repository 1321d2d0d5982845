// Package observability provides metrics for the series tracker
package observability

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

//nolint:gochecknoglobals // Singleton pattern for the metrics server
var (
	metricsServer *http.Server
	metricsOnce   sync.Once
)

// StartMetricsServer exposes /metrics on addr. Subsequent calls are no-ops.
func StartMetricsServer(log logrus.FieldLogger, addr string) {
	metricsOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 15 * time.Second,
			Handler:           mux,
		}

		go func() {
			log.WithField("addr", addr).Info("Starting metrics server")

			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("Metrics server stopped with error")
			}
		}()
	})
}
