// Package metrics exposes the process-wide prometheus instruments
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReservationsTotal counts budget reservation attempts by resource and outcome
	// outcome is one of admitted, denied
	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_reservations_total",
		Help: "Budget reservation attempts by resource and outcome",
	}, []string{"resource", "outcome"})

	// BudgetCommitted accumulates committed spend per resource
	BudgetCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_budget_committed_total",
		Help: "Committed budget amounts by resource",
	}, []string{"resource"})

	// ItemsDiscovered counts items upserted from the catalog by strategy
	ItemsDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_items_discovered_total",
		Help: "Items discovered by strategy",
	}, []string{"strategy"})

	// ItemsScored counts scoring passes, including re-scores
	ItemsScored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripwire_items_scored_total",
		Help: "Items scored, including re-scores after tier changes",
	})

	// ItemsRescored counts pending items rewritten after a tier change
	ItemsRescored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripwire_items_rescored_total",
		Help: "Pending items rescored in place after a channel tier change",
	})

	// DispatchesTotal counts analysis dispatches by terminal outcome
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_dispatches_total",
		Help: "Analysis dispatches by outcome",
	}, []string{"outcome"})

	// TierChanges counts channel tier transitions by new tier
	TierChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_tier_changes_total",
		Help: "Channel tier transitions by new tier",
	}, []string{"tier"})

	// QueueRetries counts nacks by queue
	QueueRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripwire_queue_retries_total",
		Help: "Queue nacks scheduled for retry by queue",
	}, []string{"queue"})

	// RecoveredAttempts counts attempts repaired by the recovery supervisor
	RecoveredAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripwire_recovered_attempts_total",
		Help: "Stale in-flight attempts closed by the recovery supervisor",
	})
)

// Handler serves the prometheus scrape endpoint
func Handler() http.Handler { return promhttp.Handler() }
