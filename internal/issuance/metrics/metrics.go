package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	Transitions     *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	OffersScheduled *prometheus.CounterVec
	OfferAttempts   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmanager_workflow_transitions_total",
			Help: "Issuance workflow transitions by target state",
		}, []string{"state"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmanager_webhook_events_total",
			Help: "Agent webhook deliveries by topic, state and outcome",
		}, []string{"topic", "state", "outcome"}),
		OffersScheduled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idmanager_offers_scheduled_total",
			Help: "Delayed offer jobs by result",
		}, []string{"result"}),
		OfferAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idmanager_offer_attempts",
			Help:    "Agent attempts needed per scheduled offer",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
	}
}

func (m *Metrics) IncrementTransition(state string) {
	m.Transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) IncrementWebhook(topic, state, outcome string) {
	m.WebhookEvents.WithLabelValues(topic, state, outcome).Inc()
}

func (m *Metrics) ObserveScheduledOffer(result string, attempts int) {
	m.OffersScheduled.WithLabelValues(result).Inc()
	if attempts > 0 {
		m.OfferAttempts.Observe(float64(attempts))
	}
}
