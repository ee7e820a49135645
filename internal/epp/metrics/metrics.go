package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectAttempts prometheus.Counter
	Reconnects      prometheus.Counter
	Commands        *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ConnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_epp_connect_attempts_total",
			Help: "Total registry connection attempts, including retries",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registro_epp_reconnects_total",
			Help: "Times the session was re-established after a failed command",
		}),
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registro_epp_commands_total",
			Help: "Registry commands by name and outcome",
		}, []string{"command", "outcome"}),
	}
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) IncConnectAttempts() {
	if m == nil {
		return
	}
	m.ConnectAttempts.Inc()
}

func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}
