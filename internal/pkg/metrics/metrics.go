// Package metrics exposes Prometheus instrumentation for the monitoring loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts executor runs by brand and terminal status.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "polls_total",
		Help:      "Executor runs by brand and terminal status.",
	}, []string{"brand", "status"})

	// PollErrors counts pipeline failures by brand and taxonomy kind.
	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "poll_errors_total",
		Help:      "Pipeline failures by brand and adapter error kind.",
	}, []string{"brand", "kind"})

	// PollDuration observes end-to-end job duration.
	PollDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "poll_duration_seconds",
		Help:      "End-to-end poll pipeline duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"brand"})

	// QueueDepth tracks pending tickets per brand queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "queue_depth",
		Help:      "Pending tickets per brand queue.",
	}, []string{"brand"})

	// TicketsDeduplicated counts submissions absorbed by deterministic ids.
	TicketsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "tickets_deduplicated_total",
		Help:      "Ticket submissions dropped because the id was already queued or running.",
	}, []string{"brand"})

	// RateLimitWaits counts job starts delayed by the per-brand window.
	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "solarinvest",
		Subsystem: "monitor",
		Name:      "rate_limit_waits_total",
		Help:      "Job starts delayed by the per-brand rate window.",
	}, []string{"brand"})
)
