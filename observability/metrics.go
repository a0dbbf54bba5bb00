// Package observability exposes Prometheus metrics and process
// self-stats for the bridge service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_joins_total",
			Help: "Join attempts by outcome.",
		},
		[]string{"outcome"},
	)
	DispatchAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_dispatch_attempts_total",
			Help: "Broadcast dispatch attempts by protocol outcome.",
		},
		[]string{"outcome"},
	)
	RepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_replies_total",
			Help: "Generated replies by outcome (generated, fallback, reduced_window).",
		},
		[]string{"outcome"},
	)
	ReplySplits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_reply_splits_total",
			Help: "Replies split in two because they exceeded the length threshold.",
		},
	)
	StoreFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_store_failures_total",
			Help: "Store calls that failed and were downgraded to a default result.",
		},
	)
	PollCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_poll_cycles_total",
			Help: "Client poll-reconciliation cycles executed.",
		},
	)
)

// Register installs every collector on the given registry. Mains call
// this once; tests that bump counters never register, so duplicate
// registration cannot occur.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(
		JoinsTotal,
		DispatchAttempts,
		RepliesTotal,
		ReplySplits,
		StoreFailures,
		PollCycles,
	)
}
