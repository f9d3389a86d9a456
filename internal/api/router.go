// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roomcast/roomcast/internal/middleware"
)

// Router wires the API handler, the WebSocket endpoint and the metrics
// endpoint onto one chi router.
type Router struct {
	handler       *Handler
	ws            http.Handler
	wsPath        string
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. ws serves WebSocket upgrades at wsPath.
func NewRouter(handler *Handler, ws http.Handler, wsPath string, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if wsPath == "" {
		wsPath = "/ws"
	}
	return &Router{
		handler:       handler,
		ws:            ws,
		wsPath:        wsPath,
		chiMiddleware: mw,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil)
	})

	// Health probes are not rate limited.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/rooms", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit("api"))
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.ListRooms)
		r.Get("/{room}", router.handler.GetRoom)
	})

	// Limits upgrade attempts only; frames on an open connection are
	// governed by the dispatcher's flood guard.
	r.With(router.chiMiddleware.RateLimit("ws")).Get(router.wsPath, router.ws.ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
