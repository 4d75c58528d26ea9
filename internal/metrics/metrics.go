// Package metrics provides Prometheus metrics for the departure board.
// A board run is a short-lived process, so the registry is exported as a
// node-exporter textfile at the end of each run rather than scraped.
package metrics

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeOK = "ok"
)

// Cache lookup results.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheCorrupt = "corrupt"
)

// Metrics holds all Prometheus metrics for the board.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// Acquisition metrics
	FetchesTotal         *prometheus.CounterVec
	CacheLookupsTotal    *prometheus.CounterVec
	CacheWriteFailures   prometheus.Counter
	DroppedRecordsTotal  prometheus.Counter
	CachePrunedKeysTotal prometheus.Counter

	// Render metrics
	RowsRendered     prometheus.Gauge
	ErrorsRendered   prometheus.Gauge
	RenderDuration   prometheus.Histogram
	LastRunTimestamp prometheus.Gauge

	// Preview server metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	logger *slog.Logger
}

// New creates and registers all board metrics with a new registry.
func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics with a logger for error reporting.
func NewWithLogger(logger *slog.Logger) *Metrics {
	registry := prometheus.NewRegistry()

	fetchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tramboard_fetches_total",
			Help: "Departure acquisitions by outcome",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tramboard_cache_lookups_total",
			Help: "Departure cache lookups by result",
		},
		[]string{"result"},
	)

	cacheWriteFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tramboard_cache_write_failures_total",
		Help: "Fetched payloads that could not be persisted",
	})

	droppedRecords := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tramboard_dropped_records_total",
		Help: "Trip records dropped for missing or malformed fields",
	})

	prunedKeys := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tramboard_cache_pruned_keys_total",
		Help: "Stale cache keys removed",
	})

	rowsRendered := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tramboard_rows_rendered",
		Help: "Departure tiles drawn on the last board",
	})

	errorsRendered := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tramboard_errors_rendered",
		Help: "Error lines drawn on the last board",
	})

	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tramboard_render_duration_seconds",
		Help:    "Time spent rasterizing the board",
		Buckets: prometheus.DefBuckets,
	})

	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tramboard_last_run_timestamp_seconds",
		Help: "Unix time of the last completed board run",
	})

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tramboard_http_requests_total",
			Help: "Preview server requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tramboard_http_request_duration_seconds",
			Help:    "Preview server request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		fetchesTotal,
		cacheLookupsTotal,
		cacheWriteFailures,
		droppedRecords,
		prunedKeys,
		rowsRendered,
		errorsRendered,
		renderDuration,
		lastRun,
		httpRequestsTotal,
		httpRequestDuration,
	)

	return &Metrics{
		Registry:             registry,
		FetchesTotal:         fetchesTotal,
		CacheLookupsTotal:    cacheLookupsTotal,
		CacheWriteFailures:   cacheWriteFailures,
		DroppedRecordsTotal:  droppedRecords,
		CachePrunedKeysTotal: prunedKeys,
		RowsRendered:         rowsRendered,
		ErrorsRendered:       errorsRendered,
		RenderDuration:       renderDuration,
		LastRunTimestamp:     lastRun,
		HTTPRequestsTotal:    httpRequestsTotal,
		HTTPRequestDuration:  httpRequestDuration,
		logger:               logger,
	}
}

// The observe helpers are nil-safe so components can run without metrics.

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCacheWriteFailure() {
	if m == nil {
		return
	}
	m.CacheWriteFailures.Inc()
}

func (m *Metrics) ObserveDroppedRecords(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedRecordsTotal.Add(float64(n))
}

func (m *Metrics) ObservePrunedKeys(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CachePrunedKeysTotal.Add(float64(n))
}

// ObserveRender records one rasterized board.
func (m *Metrics) ObserveRender(rows, errs int, took time.Duration) {
	if m == nil {
		return
	}
	m.RowsRendered.Set(float64(rows))
	m.ErrorsRendered.Set(float64(errs))
	m.RenderDuration.Observe(took.Seconds())
}

// MarkRun stamps the completion time of a run.
func (m *Metrics) MarkRun(at time.Time) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		if m.logger != nil {
			m.logger.Error("failed to write metrics textfile", "path", path, "error", err)
		}
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
