package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// PollCyclesTotal tracks poll cycles by outcome
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesd_poll_cycles_total",
			Help: "Total number of poll cycles executed",
		},
		[]string{"status"}, // status: success, feed_unavailable
	)

	// LiveMatches tracks the number of matches live in the latest poll
	LiveMatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seriesd_live_matches",
			Help: "Number of matches reported live in the latest poll",
		},
	)

	// ActiveSeries tracks series by status
	ActiveSeries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "seriesd_series",
			Help: "Number of tracked series by status",
		},
		[]string{"status"},
	)

	// SeriesCreatedTotal counts newly created series
	SeriesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seriesd_series_created_total",
			Help: "Total number of series created",
		},
	)

	// DisappearancesTotal counts matches that vanished from the feed
	DisappearancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seriesd_match_disappearances_total",
			Help: "Total number of matches that disappeared from the live feed",
		},
	)

	// ReappearancesTotal counts feed flaps (disappear then reappear)
	ReappearancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seriesd_match_reappearances_total",
			Help: "Total number of matches that reappeared after a disappearance",
		},
	)

	// EnrichmentAttemptsTotal counts enrichment attempts by outcome
	EnrichmentAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesd_enrichment_attempts_total",
			Help: "Total number of enrichment attempts",
		},
		[]string{"outcome"}, // outcome: succeeded, retry, abandoned, cancelled
	)

	// LowActivitySignalsTotal counts low-activity signals raised
	LowActivitySignalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seriesd_low_activity_signals_total",
			Help: "Total number of low-activity signals raised",
		},
	)

	// StoreWritesTotal counts table writes by status
	StoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesd_store_writes_total",
			Help: "Total number of store table writes",
		},
		[]string{"table", "status"}, // status: success, error
	)

	// StoreCorruptionsTotal counts quarantined tables
	StoreCorruptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seriesd_store_corruptions_total",
			Help: "Total number of corrupt tables quarantined on load",
		},
		[]string{"table"},
	)
)

// RecordPollCycle records one completed poll cycle
func RecordPollCycle(status string) {
	PollCyclesTotal.WithLabelValues(status).Inc()
}

// RecordLiveMatches records the live match count for the latest poll
func RecordLiveMatches(n int) {
	LiveMatches.Set(float64(n))
}

// RecordSeriesByStatus records the current series count for one status
func RecordSeriesByStatus(status string, n int) {
	ActiveSeries.WithLabelValues(status).Set(float64(n))
}

// RecordSeriesCreated records a newly created series
func RecordSeriesCreated() {
	SeriesCreatedTotal.Inc()
}

// RecordDisappearance records a match vanishing from the feed
func RecordDisappearance() {
	DisappearancesTotal.Inc()
}

// RecordReappearance records a feed flap
func RecordReappearance() {
	ReappearancesTotal.Inc()
}

// RecordEnrichmentAttempt records one enrichment attempt outcome
func RecordEnrichmentAttempt(outcome string) {
	EnrichmentAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordLowActivitySignal records a raised low-activity signal
func RecordLowActivitySignal() {
	LowActivitySignalsTotal.Inc()
}

// RecordStoreWrite records one table write
func RecordStoreWrite(table, status string) {
	StoreWritesTotal.WithLabelValues(table, status).Inc()
}

// RecordStoreCorruption records a quarantined table
func RecordStoreCorruption(table string) {
	StoreCorruptionsTotal.WithLabelValues(table).Inc()
}
