// Package metrics holds the prometheus collectors for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_events_applied_total",
		Help: "Inbound live events applied to the store.",
	})

	DuplicatesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_duplicates_dropped_total",
		Help: "Live events dropped because an identical message was already materialized.",
	})

	StaleFetchesDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_stale_fetches_discarded_total",
		Help: "Timeline fetch results discarded because the selection changed in flight.",
	})

	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_reconnects_total",
		Help: "Successful live channel (re)connections.",
	})

	SendsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_sends_failed_total",
		Help: "Optimistic sends whose durable write failed.",
	})

	PendingSends = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_pending_sends",
		Help: "Optimistic sends awaiting durable confirmation.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsApplied,
		DuplicatesDropped,
		StaleFetchesDiscarded,
		Reconnects,
		SendsFailed,
		PendingSends,
	)
}
