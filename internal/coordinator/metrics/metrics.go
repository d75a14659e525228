package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the coordinator's async side effects.
type Metrics struct {
	Enqueued   *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	QueueDepth prometheus.Gauge
	Deposits   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_coordinator_jobs_enqueued_total",
			Help: "Side effects queued after a committed transition, by job",
		}, []string{"job"}),
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_coordinator_jobs_dropped_total",
			Help: "Side effects not queued because the dispatcher was full or closed, by job",
		}, []string{"job"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_coordinator_job_failures_total",
			Help: "Side effects whose collaborator call failed, by job",
		}, []string{"job"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "propie_coordinator_queue_depth",
			Help: "Jobs waiting in the dispatcher",
		}),
		Deposits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propie_coordinator_deposits_applied_total",
			Help: "Grant deposits applied to reservations",
		}),
	}
}
