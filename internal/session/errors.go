// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import "errors"

var (
	// ErrInvalidState is returned when an operation is attempted in the
	// wrong connection state, e.g. assigning a blank room name.
	ErrInvalidState = errors.New("invalid connection state")

	// ErrClosed is returned for sends on a closed handle and for queued
	// sends cancelled by Close.
	ErrClosed = errors.New("connection closed")

	// ErrQueueFull is returned when the handle's send queue is at capacity.
	ErrQueueFull = errors.New("send queue full")
)
