package services

import "github.com/prometheus/client_golang/prometheus"

var (
	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Access evaluations by outcome",
		},
		[]string{"result"},
	)
	eventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_emitted_total",
			Help: "Domain events emitted by type",
		},
		[]string{"type"},
	)
	eventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Event deliveries dropped because a client buffer was full",
		},
	)
	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_stream_clients",
			Help: "Currently connected SSE/WebSocket event clients",
		},
	)
	sessionsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "device_sessions_evicted_total",
			Help: "Sessions evicted by the device limiter",
		},
	)
)

// InitMetrics registers the domain metrics. Call this from main.go.
func InitMetrics() {
	prometheus.MustRegister(accessChecksTotal)
	prometheus.MustRegister(eventsEmittedTotal)
	prometheus.MustRegister(eventsDroppedTotal)
	prometheus.MustRegister(streamClients)
	prometheus.MustRegister(sessionsEvictedTotal)
}
