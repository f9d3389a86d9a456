// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package metrics provides Prometheus metrics collection and export.

All collectors are registered with the default registry through promauto
and exposed at /metrics by the api package:

	curl http://localhost:53134/metrics

# Available Metrics

HTTP:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

WebSocket:
  - websocket_connections
  - websocket_messages_sent_total
  - websocket_frames_received_total{type}
  - websocket_errors_total{error_type}
  - websocket_idle_timeouts_total

Rooms and delivery:
  - chat_rooms_active, chat_room_members
  - chat_room_joins_total, chat_room_leaves_total{reason}
  - chat_broadcast_fanout, chat_broadcast_duration_seconds
  - chat_deliveries_enqueued_total, chat_delivery_failures_total{reason}
  - chat_protocol_violations_total{reason}
  - chat_invalid_state_frames_total, chat_flood_dropped_total

Relay:
  - relay_messages_published_total, relay_publish_failures_total
  - relay_messages_received_total, relay_messages_skipped_total{reason}
  - circuit_breaker_state{name}
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

# Usage

Callers use the Record helpers rather than touching collectors directly:

	start := time.Now()
	res := registry.Broadcast(room, payload)
	metrics.RecordBroadcast(res.Attempted, time.Since(start))

# Thread Safety

Prometheus collectors are safe for concurrent use.
*/
package metrics
