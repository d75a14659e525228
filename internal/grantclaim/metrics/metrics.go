package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for grant claim workflows.
type Metrics struct {
	ClaimsInitiated    prometheus.Counter
	Transitions        *prometheus.CounterVec
	TransitionFailures *prometheus.CounterVec
	DepositsApplied    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ClaimsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propie_grant_claims_initiated_total",
			Help: "Grant claims opened",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_grant_claim_transitions_total",
			Help: "Successful grant claim transitions, by resulting status",
		}, []string{"status"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_grant_claim_transition_failures_total",
			Help: "Rejected grant claim operations, by operation and error code",
		}, []string{"operation", "code"}),
		DepositsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propie_grant_claim_deposits_applied_total",
			Help: "Grant deposits applied to reservations",
		}),
	}
}

func (m *Metrics) IncrementTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementFailure(operation, code string) {
	m.TransitionFailures.WithLabelValues(operation, code).Inc()
}
