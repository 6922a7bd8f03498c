// Package metrics declares the prometheus collectors of the matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloutcash"

var (
	// MatchRequests counts match requests by requester role and outcome.
	MatchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_requests_total",
			Help:      "Match requests by role and result.",
		},
		[]string{"role", "result"},
	)

	MatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent serving a match request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"role"},
	)

	// CandidatesDropped counts candidates removed by each filter step.
	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Candidates removed by a filter step or the scoring gate.",
		},
		[]string{"step"},
	)

	CandidateScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_score",
			Help:      "Distribution of compatibility scores of ranked candidates.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	ScoringFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_failures_total",
			Help:      "Candidates skipped because their record could not be scored.",
		},
	)

	ExclusionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exclusion_write_conflicts_total",
			Help:      "Exclusion store transaction conflicts that were retried.",
		},
	)

	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_recorded_total",
			Help:      "Interactions appended to the log by type.",
		},
		[]string{"type"},
	)
)
