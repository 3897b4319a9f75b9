package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "precip"

// Metrics holds the Prometheus counters, histograms, and gauges for the render service.
type Metrics struct {
	// Dedup cache metrics.
	CacheLookups   *prometheus.CounterVec // labels: cache={grid,render,metadata}, result={hit,miss,coalesced,retry}
	CacheEntries   *prometheus.GaugeVec   // labels: cache
	CacheEvictions *prometheus.CounterVec // labels: cache
	CacheWaiters   *prometheus.GaugeVec   // labels: cache

	// Data source metrics.
	SourceRequests *prometheus.CounterVec   // labels: kind={grid,metadata}, outcome={success,not_found,error}
	SourceDuration *prometheus.HistogramVec // labels: kind
	SourceBytes    prometheus.Counter

	// Aggregation and rendering metrics.
	AggregateDuration *prometheus.HistogramVec // labels: mode
	RenderDuration    prometheus.Histogram
	RenderErrors      *prometheus.CounterVec // labels: mode

	// Prefetch metrics.
	PrefetchRuns    *prometheus.CounterVec // labels: outcome={success,error}
	PrefetchEnabled prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheEntries,
		m.CacheEvictions,
		m.CacheWaiters,
		m.SourceRequests,
		m.SourceDuration,
		m.SourceBytes,
		m.AggregateDuration,
		m.RenderDuration,
		m.RenderErrors,
		m.PrefetchRuns,
		m.PrefetchEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Dedup cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Completed entries held per dedup cache.",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from a bounded dedup cache.",
		}, []string{"cache"}),
		CacheWaiters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_waiters",
			Help:      "Callers currently waiting on an in-flight load.",
		}, []string{"cache"}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Data source object retrievals by kind and outcome.",
		}, []string{"kind", "outcome"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Data source object retrieval duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		SourceBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_bytes_total",
			Help:      "Bytes read from the data source.",
		}),
		AggregateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_duration_seconds",
			Help:      "Duration of an aggregation, including realization fetches.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of color mapping and PNG encoding.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		RenderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Failed renders by visualization mode.",
		}, []string{"mode"}),
		PrefetchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_runs_total",
			Help:      "Background prefetch runs by outcome.",
		}, []string{"outcome"}),
		PrefetchEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prefetch_enabled",
			Help:      "1 when background prefetch is enabled, 0 otherwise.",
		}),
	}
}
