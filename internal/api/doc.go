// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package api provides the HTTP surface of the server: health probes, a
read-only view of the room registry, the WebSocket upgrade endpoint and the
Prometheus scrape endpoint, all routed with chi.

Endpoints:

	GET /api/v1/health/live    liveness probe
	GET /api/v1/health/ready   readiness probe (503 while a check fails)
	GET /api/v1/rooms          non-empty rooms with member counts
	GET /api/v1/rooms/{room}   member ids and nicknames of one room
	GET /ws                    WebSocket upgrade (path configurable)
	GET /metrics               Prometheus metrics

Responses use the APIResponse envelope:

	{"success":true,"data":{...},"meta":{"request_id":"...","timestamp":"..."}}

Middleware: request ids (internal/middleware), chi RealIP and Recoverer,
Prometheus instrumentation, go-chi/cors, and go-chi/httprate limits on the
rooms API and on WebSocket upgrades.
*/
package api
