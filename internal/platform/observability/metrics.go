package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionsTotal counts extraction attempts by source and outcome.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipflow_extractions_total",
		Help: "Extraction attempts by source and status.",
	}, []string{"source", "status"})

	// PostProcessStageFailures counts best-effort stage failures.
	PostProcessStageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipflow_postprocess_stage_failures_total",
		Help: "Post-processor stage failures by stage.",
	}, []string{"stage"})

	// DeliveriesTotal counts outbound Telegram sends by kind and outcome.
	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipflow_deliveries_total",
		Help: "Outbound sends by action kind and status.",
	}, []string{"kind", "status"})

	// JobDuration observes worker job runtimes.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clipflow_job_duration_seconds",
		Help:    "Task worker job durations by job type.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 11),
	}, []string{"job"})

	// WebhookUpdates counts inbound gateway updates by type.
	WebhookUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipflow_webhook_updates_total",
		Help: "Inbound Telegram updates by update type.",
	}, []string{"type"})

	// FeedEntries counts feed-reader entries by trigger origin and outcome.
	FeedEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clipflow_feed_entries_total",
		Help: "Feed-reader entries by origin and status.",
	}, []string{"origin", "status"})
)
