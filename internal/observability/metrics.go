package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedComposeLatency records feed composition latency by mode.
	FeedComposeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_feed_compose_seconds",
		Help:    "Feed composition latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// SafetyVerdicts counts content safety decisions by outcome.
	SafetyVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_safety_verdicts_total",
		Help: "Total content safety verdicts by outcome (safe, unsafe, error, skipped)",
	}, []string{"verdict"})

	// ClassifierLatency records the round-trip time of the external classifier.
	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "board_classifier_request_seconds",
		Help:    "External image classifier latency in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	// ModerationActions counts resolved reports by action.
	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_moderation_actions_total",
		Help: "Total moderation resolutions by action",
	}, []string{"action"})

	// AuditEntries counts appended audit log entries.
	AuditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_audit_entries_total",
		Help: "Total audit log entries by action type",
	}, []string{"action_type"})

	// MediaUploads counts storage uploads by media kind and outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_media_uploads_total",
		Help: "Total media uploads by kind and outcome",
	}, []string{"kind", "outcome"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnections is the gauge of open WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "board_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
