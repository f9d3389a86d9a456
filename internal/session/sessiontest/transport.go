// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package sessiontest provides an in-memory session.Transport for tests of
// packages that drive session handles.
package sessiontest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/session"
)

// ErrTransportClosed is returned by WriteMessage after Close.
var ErrTransportClosed = errors.New("sessiontest: transport closed")

// Transport records every payload written to it. It can be configured to
// hold writes until released or to fail them.
type Transport struct {
	mu       sync.Mutex
	writes   []any
	events   []string
	closed     bool
	writeErr   error
	closeDelay time.Duration

	gate     chan struct{}
	closedCh chan struct{}
	started  chan struct{}
}

// NewTransport returns a transport that accepts every write immediately.
func NewTransport() *Transport {
	return &Transport{
		closedCh: make(chan struct{}),
		started:  make(chan struct{}, 1024),
	}
}

// NewBlockingTransport returns a transport whose writes wait for Release
// or Close.
func NewBlockingTransport() *Transport {
	t := NewTransport()
	t.gate = make(chan struct{}, 1024)
	return t
}

// NewHandle creates a session handle backed by a fresh recording transport.
func NewHandle(opts ...session.Option) (*session.Handle, *Transport) {
	t := NewTransport()
	return session.New(t, opts...), t
}

// WriteMessage implements session.Transport.
func (t *Transport) WriteMessage(payload any) error {
	select {
	case t.started <- struct{}{}:
	default:
	}

	if t.gate != nil {
		select {
		case <-t.gate:
		case <-t.closedCh:
			return ErrTransportClosed
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if t.writeErr != nil {
		return t.writeErr
	}
	t.writes = append(t.writes, payload)
	t.events = append(t.events, fmt.Sprintf("write:%v", payload))
	return nil
}

// Close implements session.Transport. Held writes stay blocked for the
// configured close delay, like a socket whose close frame is stuck behind
// a stalled write.
func (t *Transport) Close() error {
	t.mu.Lock()
	delay := t.closeDelay
	t.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.closedCh)
		t.events = append(t.events, "close")
	}
	return nil
}

// Release lets n held writes proceed.
func (t *Transport) Release(n int) {
	for i := 0; i < n; i++ {
		t.gate <- struct{}{}
	}
}

// SetCloseDelay makes Close block for d before taking effect.
func (t *Transport) SetCloseDelay(d time.Duration) {
	t.mu.Lock()
	t.closeDelay = d
	t.mu.Unlock()
}

// FailWrites makes every later write return err.
func (t *Transport) FailWrites(err error) {
	t.mu.Lock()
	t.writeErr = err
	t.mu.Unlock()
}

// Started receives one value each time a write begins.
func (t *Transport) Started() <-chan struct{} {
	return t.started
}

// Writes returns a copy of the successfully written payloads.
func (t *Transport) Writes() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.writes))
	copy(out, t.writes)
	return out
}

// Events returns the write/close sequence observed so far.
func (t *Transport) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.events))
	copy(out, t.events)
	return out
}

// IsClosed reports whether Close was called.
func (t *Transport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// WaitForWrites polls until at least n payloads were written or timeout
// elapses.
func (t *Transport) WaitForWrites(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		got := len(t.writes)
		t.mu.Unlock()
		if got >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
