package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the periodic expiry sweeps.
type Metrics struct {
	SweepDuration prometheus.Histogram
	Expired       *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	Failed        *prometheus.CounterVec
	SweepErrors   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "propie_expiry_sweep_duration_seconds",
			Help:    "Wall time of one sweep over reservations and grant claims",
			Buckets: prometheus.DefBuckets,
		}),
		Expired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_expiry_entities_expired_total",
			Help: "Entities moved to EXPIRED by the sweep, by kind",
		}, []string{"kind"}),
		Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_expiry_entities_skipped_total",
			Help: "Entities selected by the sweep that had moved on or were busy, by kind",
		}, []string{"kind"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_expiry_entities_failed_total",
			Help: "Entities the sweep could not expire, by kind",
		}, []string{"kind"}),
		SweepErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_expiry_sweep_errors_total",
			Help: "Sweeps that aborted before finishing, by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	m.SweepDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSweep(kind string, expired, skipped, failed int) {
	m.Expired.WithLabelValues(kind).Add(float64(expired))
	m.Skipped.WithLabelValues(kind).Add(float64(skipped))
	m.Failed.WithLabelValues(kind).Add(float64(failed))
}

func (m *Metrics) IncrementSweepError(kind string) {
	m.SweepErrors.WithLabelValues(kind).Inc()
}
