// Package metrics defines Prometheus metrics for chatvault.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatvault_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatvault_errors_total",
			Help: "Total API errors by code",
		},
		[]string{"code"},
	)

	ConversationsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatvault_conversations_ingested_total",
			Help: "Conversations processed by disposition",
		},
		[]string{"disposition"},
	)

	PathRecoveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatvault_path_recoveries_total",
			Help: "Normalizations that fell back to the deepest-node path",
		},
	)

	IngestRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatvault_ingest_run_duration_seconds",
			Help:    "Wall-clock duration of full ingestion runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)

	IngestWorkersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatvault_ingest_workers_active",
			Help: "Ingestion workers currently processing a conversation",
		},
	)

	ChatCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatvault_chats_total",
			Help: "Total archived chat count",
		},
	)

	MessageCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatvault_messages_total",
			Help: "Total archived message count",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		ConversationsIngested, PathRecoveries,
		IngestRunDuration, IngestWorkersActive,
		ChatCount, MessageCount,
	)
}
