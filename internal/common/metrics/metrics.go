package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_processed_total",
			Help: "Total number of user turns processed by the orchestrator",
		},
		[]string{"outcome"},
	)

	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "chat_extraction_duration_seconds",
			Help: "Latency of calls to the structured-extraction collaborator",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_posted_total",
			Help: "Total messages appended to session timelines",
		},
		[]string{"variant"},
	)

	HandoverOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_handover_outcomes_total",
			Help: "Terminal outcomes of handover attempts",
		},
		[]string{"outcome"},
	)

	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_store_errors_total",
			Help: "Best-effort store operations that failed",
		},
	)
)
