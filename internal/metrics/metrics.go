// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "moderator_run_duration_sec",
	Help:    "Total duration of a moderation pipeline run",
	Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
})

var RunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_runs",
	Help: "Number of pipeline runs, by outcome (harmful, safe, failed)",
}, []string{"outcome"})

var VerdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_verdicts",
	Help: "Number of completed verdicts, by severity and action",
}, []string{"severity", "action"})

var StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "moderator_stage_duration_sec",
	Help: "Duration of each pipeline stage",
}, []string{"stage"})

var StageErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_stage_errors",
	Help: "Number of stage executions that aborted a run",
}, []string{"stage"})

var MalformedResponseCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_malformed_responses",
	Help: "Number of oracle responses missing an expected label, by stage and label",
}, []string{"stage", "label"})

var DecisionMismatchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_decision_mismatches",
	Help: "Number of oracle (severity, action) pairs that disagreed with the decision table",
}, []string{"strategy"})

var PromptTokens = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "moderator_prompt_tokens",
	Help:    "Estimated prompt size in tokens, by stage",
	Buckets: prometheus.ExponentialBuckets(64, 2, 8),
}, []string{"stage"})

var OracleAttemptCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_oracle_attempts",
	Help: "Number of oracle call attempts, by result (ok, transient, fatal)",
}, []string{"result"})

var OracleUnavailableCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderator_oracle_unavailable",
	Help: "Number of oracle calls that exhausted their retry budget",
})

var PersistFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "moderator_persist_failures",
	Help: "Number of verdict records that failed to persist",
})

var ImportedItemCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "moderator_imported_items",
	Help: "Number of imported comments processed, by source",
}, []string{"source"})
