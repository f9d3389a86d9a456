// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package middleware provides HTTP middleware shared by the API router and the
WebSocket endpoint.

Key Components:

  - RequestID: request id tracking, propagated into the logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation,
    labelled by chi route pattern

Both are plain func(http.Handler) http.Handler and are mounted with chi's
r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics wraps the ResponseWriter but forwards http.Hijacker, so
it can sit in front of WebSocket upgrades.
*/
package middleware
