package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equilibrium/internal/equilibrium"
)

// Registry holds the simulator's collectors on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Evaluations      *prometheus.CounterVec
	Failures         *prometheus.CounterVec
	BatchDuration    *prometheus.HistogramVec
	BatchAssets      prometheus.Gauge
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheHitRatio    prometheus.Gauge
	ScenarioRequests *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates a registry with every collector registered, plus the Go
// runtime and process collectors.
func New() *Registry {
	m := &Registry{
		reg: prometheus.NewRegistry(),

		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_evaluations_total",
				Help: "Successful asset evaluations by kind (baseline or scenario)",
			},
			[]string{"kind"},
		),

		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_failures_total",
				Help: "Per-asset evaluation failures by reason",
			},
			[]string{"reason"},
		),

		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equilibrium_batch_duration_seconds",
				Help:    "Duration of batch evaluations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"kind"},
		),

		BatchAssets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equilibrium_batch_assets",
				Help: "Number of assets in the most recent batch",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_cache_hits_total",
				Help: "Total number of cache hits by cache",
			},
			[]string{"cache"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_cache_misses_total",
				Help: "Total number of cache misses by cache",
			},
			[]string{"cache"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "equilibrium_cache_hit_ratio",
				Help: "Hit ratio across all caches (0.0 to 1.0)",
			},
		),

		ScenarioRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_scenario_requests_total",
				Help: "Scenario simulations by preset (custom when ad hoc)",
			},
			[]string{"preset"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equilibrium_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equilibrium_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.reg.MustRegister(
		m.Evaluations,
		m.Failures,
		m.BatchDuration,
		m.BatchAssets,
		m.CacheHits,
		m.CacheMisses,
		m.CacheHitRatio,
		m.ScenarioRequests,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Gatherer exposes the underlying registry.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// Handler serves the registry in the prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveBatch records the outcome of one batch run.
func (m *Registry) ObserveBatch(kind string, assets int, result equilibrium.BatchResult, elapsed time.Duration) {
	m.BatchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	m.BatchAssets.Set(float64(assets))
	m.Evaluations.WithLabelValues(kind).Add(float64(len(result.Evaluations)))
	for _, f := range result.Failures {
		m.Failures.WithLabelValues(FailureReason(f)).Inc()
	}

	log.Debug().
		Str("kind", kind).
		Int("assets", assets).
		Int("failures", len(result.Failures)).
		Dur("duration", elapsed).
		Msg("Batch observed")
}

// FailureReason maps an engine error onto a low-cardinality label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, equilibrium.ErrMalformedInput):
		return "malformed_input"
	case errors.Is(err, equilibrium.ErrInvalidOverride):
		return "invalid_override"
	case errors.Is(err, equilibrium.ErrInvalidModel):
		return "invalid_model"
	default:
		return "other"
	}
}

// RecordCacheHit records a cache hit for the named cache
func (m *Registry) RecordCacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
	m.updateCacheHitRatio()
}

// RecordCacheMiss records a cache miss for the named cache
func (m *Registry) RecordCacheMiss(cache string) {
	m.CacheMisses.WithLabelValues(cache).Inc()
	m.updateCacheHitRatio()
}

// updateCacheHitRatio sums hits and misses across every cache label
func (m *Registry) updateCacheHitRatio() {
	hits := sumCounter(m.CacheHits)
	total := hits + sumCounter(m.CacheMisses)
	if total > 0 {
		m.CacheHitRatio.Set(hits / total)
	}
}

func sumCounter(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		var pb io_prometheus_client.Metric
		if err := metric.Write(&pb); err == nil {
			total += pb.GetCounter().GetValue()
		}
	}
	return total
}
