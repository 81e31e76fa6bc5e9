package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelink_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// RealtimeClients tracks currently connected realtime subscribers.
	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradelink_realtime_clients",
			Help: "Number of connected realtime websocket clients",
		},
	)

	// RealtimeEvents counts realtime events broadcast by stream and event name.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradelink_realtime_events_total",
			Help: "Total number of realtime events broadcast",
		},
		[]string{"stream", "event"},
	)

	// MessagesSent counts chat messages accepted by the server.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradelink_chat_messages_total",
			Help: "Total number of chat messages persisted",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradelink_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
