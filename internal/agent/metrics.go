package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RequestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idmanager_agent_request_duration_seconds",
			Help:    "Latency of credential agent calls by operation and outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
	}
}

func (m *Metrics) ObserveRequest(op, status string, d time.Duration) {
	m.RequestDuration.WithLabelValues(op, status).Observe(d.Seconds())
}
