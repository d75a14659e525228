package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics provides observability for the financial ledger.
type Metrics struct {
	TransactionsRecorded *prometheus.CounterVec
	TransactionsSettled  *prometheus.CounterVec
	RefundedAmount       prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TransactionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_ledger_transactions_recorded_total",
			Help: "Ledger transactions recorded, by type and initial status",
		}, []string{"type", "status"}),
		TransactionsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "propie_ledger_transactions_settled_total",
			Help: "Pending ledger transactions moved to a final status",
		}, []string{"status"}),
		RefundedAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "propie_ledger_refunded_amount_total",
			Help: "Sum of refunded amounts in major currency units",
		}),
	}
}

func (m *Metrics) IncrementRecorded(txType, status string) {
	m.TransactionsRecorded.WithLabelValues(txType, status).Inc()
}

func (m *Metrics) IncrementSettled(status string) {
	m.TransactionsSettled.WithLabelValues(status).Inc()
}

func (m *Metrics) AddRefunded(amount decimal.Decimal) {
	m.RefundedAmount.Add(amount.InexactFloat64())
}
