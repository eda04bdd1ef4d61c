package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var passDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "tablepipe_pass_duration_seconds",
	Help:    "Duration of deferred pipeline passes in seconds",
	Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
}, []string{"stage"})

var staleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablepipe_stale_passes_total",
	Help: "Deferred passes discarded because a newer pass was requested",
}, []string{"stage"})

var resolverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tablepipe_resolver_errors_total",
	Help: "Clauses the query resolver failed to evaluate",
}, []string{"stage"})

func observe(stage string, start time.Time) {
	passDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
