package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scatty_active_sessions",
			Help: "Number of sessions held in the session store",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scatty_sessions_evicted_total",
			Help: "Total number of sessions removed by idle eviction",
		},
	)

	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scatty_ws_connections",
			Help: "Number of open websocket connections",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scatty_events_received_total",
			Help: "Total number of client events by name",
		},
		[]string{"event"},
	)

	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scatty_generation_latency_seconds",
			Help:    "Generation adapter latency in seconds, including retries",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"outcome"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scatty_generation_failures_total",
			Help: "Total number of failed generation attempts by reason",
		},
		[]string{"reason"},
	)
)
