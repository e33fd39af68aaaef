// Package metrics exposes Prometheus counters and histograms for deploy
// stage durations and client-interface verb outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks how long each top-level deploy stage took, by
	// stage name (load, distribute, lock, transition) and outcome.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "disnix_deploy_stage_duration_seconds",
			Help:    "Duration of each deploy stage, by stage and outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "outcome"},
	)

	// VerbTotal counts client-interface verb invocations by verb, target,
	// and result (ok/error).
	VerbTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disnix_client_verb_total",
			Help: "Total client-interface verb invocations by verb, target, and result",
		},
		[]string{"verb", "target", "result"},
	)

	// DeployOutcomeTotal counts completed deploys by their terminal
	// outcome (DEPLOY_OK, DEPLOY_FAIL, DEPLOY_STATE_FAIL, INTERRUPTED).
	DeployOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disnix_deploy_outcome_total",
			Help: "Total completed deploys by terminal outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveStage records how long a stage took and its outcome label.
func ObserveStage(stage, outcome string, d time.Duration) {
	StageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// ObserveVerb records a single client-interface verb invocation outcome.
func ObserveVerb(verb, target string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	VerbTotal.WithLabelValues(verb, target, result).Inc()
}

// ObserveDeployOutcome records one deploy's terminal outcome.
func ObserveDeployOutcome(outcome string) {
	DeployOutcomeTotal.WithLabelValues(outcome).Inc()
}
