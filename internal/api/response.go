// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
)

// APIResponse is the envelope of every JSON API response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta carries response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, APIResponse{
		Success: status < http.StatusBadRequest,
		Data:    data,
		Meta:    newMeta(r),
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Warn().Int("status", status).Str("code", code).Msg(message)
	}

	meta := newMeta(r)
	writeJSON(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

func newMeta(r *http.Request) *APIMeta {
	return &APIMeta{
		RequestID: logging.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

func writeJSON(w http.ResponseWriter, status int, response APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}
