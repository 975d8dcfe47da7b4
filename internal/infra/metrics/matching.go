package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(matchAttempts, matchLatency, assignmentRevoked) }

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

var matchAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_match_attempts_total",
		Help: "Matcher assignment attempts, labeled by outcome.",
	},
	[]string{"outcome"}, // 'assigned', 'no_worker', 'timeout'
)

var matchLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "coordinator_match_latency_seconds",
		Help:    "Time from submission to successful assignment.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	},
)

var assignmentRevoked = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coordinator_assignments_revoked_total",
		Help: "Assignments revoked because the worker never acknowledged.",
	},
)

func IncMatch(outcome string)             { matchAttempts.WithLabelValues(norm(outcome)).Inc() }
func ObserveMatchLatency(seconds float64) { matchLatency.Observe(seconds) }
func IncRevocation()                      { assignmentRevoked.Inc() }
