// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket frames written to clients",
		},
	)

	WSFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frames_received_total",
			Help: "Total number of inbound WebSocket frames by decoded type",
		},
		[]string{"type"}, // "join", "msg", "typing", "invalid"
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSIdleTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_idle_timeouts_total",
			Help: "Total number of connections closed for read inactivity",
		},
	)

	// Room Metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_rooms_active",
			Help: "Current number of non-empty rooms",
		},
	)

	RoomMembers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_room_members",
			Help: "Current number of room memberships across all rooms",
		},
	)

	RoomJoins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_room_joins_total",
			Help: "Total number of room joins",
		},
	)

	RoomLeaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_room_leaves_total",
			Help: "Total number of room leaves by cause",
		},
		[]string{"reason"}, // "leave", "closed", "delivery_failure"
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_broadcast_fanout",
			Help:    "Number of members targeted by each broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_broadcast_duration_seconds",
			Help:    "Time spent enqueueing one broadcast to every member",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
	)

	// Delivery Metrics
	DeliveryEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_deliveries_enqueued_total",
			Help: "Total number of payloads accepted onto a connection send queue",
		},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_delivery_failures_total",
			Help: "Total number of payloads that could not be enqueued",
		},
		[]string{"reason"}, // "queue_full", "closed", "other"
	)

	// Dispatcher Metrics
	ProtocolViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_protocol_violations_total",
			Help: "Total number of malformed or unexpected inbound frames",
		},
		[]string{"reason"},
	)

	InvalidStateFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_invalid_state_frames_total",
			Help: "Total number of frames dropped because the connection was in the wrong state",
		},
	)

	FloodDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_flood_dropped_total",
			Help: "Total number of frames dropped by the per-connection flood guard",
		},
	)

	// Relay Metrics
	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Total number of broadcasts published to peer instances",
		},
	)

	RelayPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_failures_total",
			Help: "Total number of failed or rejected relay publishes",
		},
	)

	RelayReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total number of relayed broadcasts delivered locally",
		},
	)

	RelaySkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_skipped_total",
			Help: "Total number of relayed messages not delivered locally",
		},
		[]string{"reason"}, // "own_origin", "parse_failed"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a request rejected by a rate limiter.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordConnectionOpened records a completed WebSocket handshake.
func RecordConnectionOpened() {
	WSConnections.Inc()
}

// RecordConnectionClosed records a torn-down WebSocket connection.
func RecordConnectionClosed() {
	WSConnections.Dec()
}

// RecordMessageSent records a frame written to a client.
func RecordMessageSent() {
	WSMessagesSent.Inc()
}

// RecordFrameReceived records an inbound frame by its decoded type.
func RecordFrameReceived(frameType string) {
	WSFramesReceived.WithLabelValues(frameType).Inc()
}

// RecordWSError records a transport-level WebSocket error.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordIdleTimeout records a connection closed for read inactivity.
func RecordIdleTimeout() {
	WSIdleTimeouts.Inc()
}

// RecordJoin records a new room membership.
func RecordJoin() {
	RoomJoins.Inc()
}

// RecordLeave records a removed room membership.
func RecordLeave(reason string) {
	RoomLeaves.WithLabelValues(reason).Inc()
}

// UpdateRoomGauges sets the room and membership gauges.
func UpdateRoomGauges(rooms, members int) {
	RoomsActive.Set(float64(rooms))
	RoomMembers.Set(float64(members))
}

// RecordBroadcast records one room broadcast.
func RecordBroadcast(fanout int, duration time.Duration) {
	BroadcastFanout.Observe(float64(fanout))
	BroadcastDuration.Observe(duration.Seconds())
}

// RecordDeliveryEnqueued records a payload accepted by a send queue.
func RecordDeliveryEnqueued() {
	DeliveryEnqueued.Inc()
}

// RecordDeliveryFailure records a payload that could not be enqueued.
func RecordDeliveryFailure(reason string) {
	DeliveryFailures.WithLabelValues(reason).Inc()
}

// RecordProtocolViolation records a malformed or unexpected frame.
func RecordProtocolViolation(reason string) {
	ProtocolViolations.WithLabelValues(reason).Inc()
}

// RecordInvalidState records a frame dropped for connection state.
func RecordInvalidState() {
	InvalidStateFrames.Inc()
}

// RecordFloodDrop records a frame dropped by the flood guard.
func RecordFloodDrop() {
	FloodDropped.Inc()
}

// RecordRelayPublish records the outcome of publishing to peer instances.
func RecordRelayPublish(err error) {
	if err != nil {
		RelayPublishFailures.Inc()
		return
	}
	RelayPublished.Inc()
}

// RecordRelayReceived records a relayed broadcast delivered locally.
func RecordRelayReceived() {
	RelayReceived.Inc()
}

// RecordRelaySkipped records a relayed message that was not delivered.
func RecordRelaySkipped(reason string) {
	RelaySkipped.WithLabelValues(reason).Inc()
}

// RecordCircuitBreakerState sets the current breaker state gauge.
func RecordCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerRequest records a call through a breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// SetAppInfo publishes the build version.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// UpdateUptime sets the uptime gauge relative to start.
func UpdateUptime(start time.Time) {
	AppUptime.Set(time.Since(start).Seconds())
}
