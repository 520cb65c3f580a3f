// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// EventsDecoded tracks push-channel events successfully decoded.
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_decoded_total",
			Help: "Push-channel events successfully decoded",
		},
		[]string{"type"},
	)

	// EventsDropped tracks push-channel events discarded before application.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_dropped_total",
			Help: "Push-channel events discarded (decode failure or reconcile mismatch)",
		},
		[]string{"reason"},
	)

	// FeedSessionsActive tracks currently open feed sessions.
	FeedSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_sessions_active",
			Help: "Number of open feed sessions",
		},
	)

	// SSEConnectionsActive tracks active SSE connections on the agent daemon.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentd_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// TasksTotal tracks tasks created by terminal state.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentd_tasks_total",
			Help: "Total tasks processed by final state",
		},
		[]string{"state"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentd_conversations_total",
			Help: "Total conversations created",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordEventDecoded records one successfully decoded event.
func RecordEventDecoded(eventType string) {
	EventsDecoded.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records one discarded event with the drop reason.
func RecordEventDropped(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}
