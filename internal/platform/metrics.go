package platform

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ScoreRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sw_score_requests_total",
		Help: "Score requests by cache outcome (hit, miss, stale).",
	}, []string{"outcome"})

	RecomputeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sw_recompute_seconds",
		Help:    "Duration of full score recomputations.",
		Buckets: prometheus.DefBuckets,
	})

	CollectorOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sw_collector_outcomes_total",
		Help: "Signal collector results by category and outcome.",
	}, []string{"category", "outcome"})

	CollectorSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sw_collector_seconds",
		Help:    "Duration of signal collectors.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"category"})

	TierTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sw_tier_transitions_total",
		Help: "Tier transitions observed on recomputation.",
	}, []string{"from", "to"})

	CacheWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sw_cache_write_errors_total",
		Help: "Failed score cache upserts.",
	})
)

// MustRegister registers the service metrics.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ScoreRequests,
		RecomputeSeconds,
		CollectorOutcomes,
		CollectorSeconds,
		TierTransitions,
		CacheWriteErrors,
	)
}

// ObserveCollector records one collector run.
func ObserveCollector(category, outcome string, start time.Time) {
	if outcome == "" {
		outcome = "ok"
	}
	CollectorOutcomes.WithLabelValues(category, outcome).Inc()
	CollectorSeconds.WithLabelValues(category).Observe(time.Since(start).Seconds())
}
