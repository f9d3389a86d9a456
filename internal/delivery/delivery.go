// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package delivery sends payloads to one or many session handles and
// reports per-handle outcomes.
//
// Delivery here means "accepted onto the connection's send queue". Network
// writes happen later on each handle's writer goroutine and are reported
// through the returned futures, so SendOne and SendMany never block on I/O.
package delivery

import (
	"errors"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/session"
)

// Result is the outcome of handing one payload to one handle.
type Result struct {
	Handle *session.Handle
	// Future completes when the payload has been written. Nil when Err is set.
	Future *session.Future
	// Err is the enqueue failure, if any.
	Err error
}

// OK reports whether the payload was accepted.
func (r Result) OK() bool {
	return r.Err == nil
}

// Channel is the seam between the room registry and connection I/O.
type Channel interface {
	SendOne(h *session.Handle, payload any) Result
	SendMany(hs []*session.Handle, payload any) []Result
}

// QueueChannel delivers by enqueueing on each handle. It never retries.
type QueueChannel struct {
	evictSlow bool
}

// Option configures a QueueChannel.
type Option func(*QueueChannel)

// WithSlowConsumerEviction closes handles whose send queue overflowed.
// Enabled by default.
func WithSlowConsumerEviction(enabled bool) Option {
	return func(c *QueueChannel) {
		c.evictSlow = enabled
	}
}

// NewQueueChannel creates a QueueChannel.
func NewQueueChannel(opts ...Option) *QueueChannel {
	c := &QueueChannel{evictSlow: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendOne enqueues payload on h.
func (c *QueueChannel) SendOne(h *session.Handle, payload any) Result {
	f, err := h.Enqueue(payload)
	if err == nil {
		metrics.RecordDeliveryEnqueued()
		return Result{Handle: h, Future: f}
	}

	metrics.RecordDeliveryFailure(failureReason(err))
	if errors.Is(err, session.ErrQueueFull) && c.evictSlow {
		logging.Warn().
			Str("conn_id", h.ID()).
			Str("room", h.Room()).
			Msg("send queue full, evicting slow consumer")
		h.Evict()
	}
	return Result{Handle: h, Err: err}
}

// SendMany enqueues payload on every handle. Results are in input order;
// one failure never prevents delivery to the others.
func (c *QueueChannel) SendMany(hs []*session.Handle, payload any) []Result {
	results := make([]Result, len(hs))
	for i, h := range hs {
		results[i] = c.SendOne(h, payload)
	}
	return results
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, session.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, session.ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
