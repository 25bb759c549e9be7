package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_statements_total",
			Help: "Statements validated or executed, by policy, command kind and outcome",
		},
		[]string{"policy", "kind", "outcome"},
	)

	StatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_statement_duration_seconds",
			Help:    "Statement execution duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"policy"},
	)

	CopiesProvisioned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandbox_copies_provisioned_total",
		Help: "Database copies cloned from a logical database",
	})

	CopiesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandbox_copies_swept_total",
		Help: "Expired database copies removed by the sweeper",
	})

	CopySweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sandbox_copy_sweep_failures_total",
		Help: "Expired database copies the sweeper failed to drop",
	})
)

// ObserveStatement records one statement outcome.
func ObserveStatement(policy, kind, outcome string, d time.Duration) {
	StatementsTotal.WithLabelValues(policy, kind, outcome).Inc()
	StatementDuration.WithLabelValues(policy).Observe(d.Seconds())
}
