package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Operations     *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registro_registration_operations_total",
			Help: "Orchestrator operations by name, provider and outcome",
		}, []string{"operation", "provider", "outcome"}),
		SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registro_registration_search_duration_seconds",
			Help:    "Wall time of a full multi-suffix availability search",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_registration_availability_cache_hits_total",
			Help: "Availability verdicts served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_registration_availability_cache_misses_total",
			Help: "Availability verdicts that required a backend call",
		}),
	}
}

func (m *Metrics) ObserveOperation(operation, provider, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, provider, outcome).Inc()
}

func (m *Metrics) ObserveSearch(seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(seconds)
}

func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
