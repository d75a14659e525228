package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes every collector registered through promauto.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMetrics tracks request latency per route.
type HTTPMetrics struct {
	Latency *prometheus.HistogramVec
}

func NewHTTP() *HTTPMetrics {
	return &HTTPMetrics{
		Latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propie_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *HTTPMetrics) Observe(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
