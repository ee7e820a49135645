package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Attempts  *prometheus.CounterVec
	Recovered prometheus.Counter
	Abandoned prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registro_retry_attempts_total",
			Help: "Retry attempts by outcome",
		}, []string{"outcome"}),
		Recovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_retry_recovered_total",
			Help: "Failed registrations that eventually succeeded",
		}),
		Abandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_retry_abandoned_total",
			Help: "Failed registrations given up after exhausting retries",
		}),
	}
}

func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRecovered() {
	if m == nil {
		return
	}
	m.Recovered.Inc()
}

func (m *Metrics) IncAbandoned() {
	if m == nil {
		return
	}
	m.Abandoned.Inc()
}
