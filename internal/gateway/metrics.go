package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// newMetrics registers the gateway collectors on reg. A nil reg yields
// working but unregistered collectors.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tontine",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend requests by route and outcome.",
		}, []string{"method", "route", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tontine",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
