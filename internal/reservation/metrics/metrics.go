package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for reservation lifecycles.
type Metrics struct {
	ReservationsCreated *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	TransitionFailures  *prometheus.CounterVec
	ActiveReservations  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		ReservationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_reservations_created_total",
			Help: "Reservations opened, by reservation type",
		}, []string{"type"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_reservation_transitions_total",
			Help: "Successful reservation transitions, by action and resulting status",
		}, []string{"action", "status"}),
		TransitionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_reservation_transition_failures_total",
			Help: "Rejected reservation transitions, by action and error code",
		}, []string{"action", "code"}),
		ActiveReservations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "propie_reservations_active",
			Help: "Reservations opened minus reservations closed since process start",
		}),
	}
}

func (m *Metrics) IncrementCreated(resType string) {
	m.ReservationsCreated.WithLabelValues(resType).Inc()
	m.ActiveReservations.Inc()
}

func (m *Metrics) IncrementTransition(action, status string, closed bool) {
	m.Transitions.WithLabelValues(action, status).Inc()
	if closed {
		m.ActiveReservations.Dec()
	}
}

func (m *Metrics) IncrementFailure(action, code string) {
	m.TransitionFailures.WithLabelValues(action, code).Inc()
}
