// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_sessions_created_total",
		Help: "Sessions created, by initial status",
	}, []string{"status"}) // status=REQUESTED|AVAILABLE

	sessionsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_sessions_deleted_total",
		Help: "Sessions removed, by terminal reason",
	}, []string{"reason"})

	sessionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qod_session_conflicts_total",
		Help: "Create requests rejected because an overlapping session exists",
	})

	sessionExtensions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_session_extensions_total",
		Help: "Extension attempts by outcome",
	}, []string{"outcome"}) // outcome=extended|clamped|rejected

	sweepCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_sweep_cycles_total",
		Help: "Expiration sweep cycles by outcome",
	}, []string{"outcome"}) // outcome=ran|skipped|error

	sweepClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qod_sweep_claimed_total",
		Help: "Sessions claimed for deletion by the sweeper",
	})

	scheduledDeletions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qod_scheduled_deletions",
		Help: "Deferred deletions currently armed in this instance",
	})

	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_upstream_requests_total",
		Help: "Network provider requests by operation and outcome",
	}, []string{"op", "outcome"})

	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_publish_total",
		Help: "Lifecycle event deliveries by sink and outcome",
	}, []string{"sink", "outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_notifications_total",
		Help: "Network notifications handled by kind and outcome",
	}, []string{"kind", "outcome"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qod_upstream_breaker_state",
		Help: "Upstream circuit breaker state, one-hot over closed|half-open|open",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qod_upstream_breaker_trips_total",
		Help: "Upstream circuit breaker transitions to open",
	}, []string{"component", "reason"}) // reason=threshold|probe_failed
)

var breakerStates = [...]string{"closed", "half-open", "open"}

func IncSessionCreated(status string)       { sessionsCreated.WithLabelValues(status).Inc() }
func IncSessionDeleted(reason string)       { sessionsDeleted.WithLabelValues(reason).Inc() }
func IncSessionConflict()                   { sessionConflicts.Inc() }
func IncSessionExtension(outcome string)    { sessionExtensions.WithLabelValues(outcome).Inc() }
func IncSweepCycle(outcome string)          { sweepCycles.WithLabelValues(outcome).Inc() }
func AddSweepClaimed(n int)                 { sweepClaimed.Add(float64(n)) }
func SetScheduledDeletions(n int)           { scheduledDeletions.Set(float64(n)) }
func IncUpstreamRequest(op, outcome string) { upstreamRequests.WithLabelValues(op, outcome).Inc() }
func IncPublish(sink, outcome string)       { publishTotal.WithLabelValues(sink, outcome).Inc() }

// IncNotification counts a handled network notification.
// outcome=applied|ignored|stale|fenced|rejected
func IncNotification(kind, outcome string) {
	notificationsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetBreakerState marks state as the only active breaker state of component.
func SetBreakerState(component, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(component, s).Set(v)
	}
}

func IncBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
