// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"net/http"
	"time"
)

// HealthLive answers the liveness probe. It succeeds whenever the process
// can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers the readiness probe. It returns 503 while any
// registered readiness check fails.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks()
	rooms, members := h.rooms.Stats()

	data := map[string]interface{}{
		"ready":   ready,
		"checks":  checks,
		"rooms":   rooms,
		"members": members,
		"uptime":  time.Since(h.startTime).Seconds(),
	}

	if !ready {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service is not ready", data)
		return
	}
	respondJSON(w, r, http.StatusOK, data)
}
