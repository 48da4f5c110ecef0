// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExperimentsApproved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patternlab_experiments_approved_total",
		Help: "Learning patterns approved into experiments.",
	})

	ExperimentsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patternlab_experiments_completed_total",
		Help: "Experiments reaching completed, by outcome classification.",
	}, []string{"outcome"})

	SignalEventsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patternlab_signal_events_total",
		Help: "Trigger conditions fired by the signal engine.",
	})

	BacktestsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "patternlab_backtests_total",
		Help: "Pattern backtests served.",
	})
)
