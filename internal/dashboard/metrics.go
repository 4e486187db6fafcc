package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	panelFailures *prometheus.CounterVec
	superseded    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tontine",
			Subsystem: "dashboard",
			Name:      "runs_total",
			Help:      "Aggregation runs by outcome (complete, partial, cancelled).",
		}, []string{"outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tontine",
			Subsystem: "dashboard",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one aggregation run.",
			Buckets:   prometheus.DefBuckets,
		}),
		panelFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tontine",
			Subsystem: "dashboard",
			Name:      "panel_failures_total",
			Help:      "Panels that failed to load.",
		}, []string{"panel"}),
		superseded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tontine",
			Subsystem: "dashboard",
			Name:      "superseded_total",
			Help:      "Runs discarded because a newer refresh started.",
		}),
	}
}
