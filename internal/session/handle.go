// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/logging"
)

// DefaultQueueSize is the send queue capacity used when none is configured.
const DefaultQueueSize = 256

// Transport is the write side of one live connection. WriteMessage is only
// ever called from the handle's writer goroutine; Close may be called
// concurrently with an in-flight WriteMessage and must unblock it.
type Transport interface {
	WriteMessage(payload any) error
	Close() error
}

type message struct {
	payload any
	future  *Future
}

// Handle is the core's view of one live client connection.
type Handle struct {
	id        string
	transport Transport

	stateMu  sync.RWMutex
	room     string
	nickname string
	values   map[string]any

	// sendMu guards closed and every enqueue onto queue/flushReq.
	sendMu   sync.Mutex
	closed   bool
	queue    chan message
	flushReq chan *message

	kill      chan struct{}
	killOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}

	hookMu     sync.Mutex
	hooks      map[string]func(*Handle)
	hooksFired bool
}

// Option configures a Handle.
type Option func(*Handle)

// WithQueueSize sets the send queue capacity. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(h *Handle) {
		if n > 0 {
			h.queue = make(chan message, n)
		}
	}
}

// WithID overrides the generated connection id.
func WithID(id string) Option {
	return func(h *Handle) {
		if id != "" {
			h.id = id
		}
	}
}

// New wraps t in a Handle and starts its writer goroutine.
func New(t Transport, opts ...Option) *Handle {
	h := &Handle{
		id:        NewID(),
		transport: t,
		values:    make(map[string]any),
		queue:     make(chan message, DefaultQueueSize),
		flushReq:  make(chan *message, 1),
		kill:      make(chan struct{}),
		done:      make(chan struct{}),
		hooks:     make(map[string]func(*Handle)),
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.writeLoop()
	return h
}

// NewID returns a fresh connection id: a random UUID without dashes.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ID returns the immutable connection id. It is meant for logging only.
func (h *Handle) ID() string {
	return h.id
}

// Room returns the assigned room name, or "" when unassigned.
func (h *Handle) Room() string {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.room
}

// SetRoom assigns the connection to a room name. It does not register the
// handle with any registry. Blank names are rejected with ErrInvalidState
// and leave the current assignment untouched.
func (h *Handle) SetRoom(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("set room %q: %w", name, ErrInvalidState)
	}

	h.stateMu.Lock()
	h.room = name
	h.stateMu.Unlock()
	return nil
}

// ClearRoom resets the room assignment.
func (h *Handle) ClearRoom() {
	h.stateMu.Lock()
	h.room = ""
	h.stateMu.Unlock()
}

// Nickname returns the display identity, or "" before it is known.
func (h *Handle) Nickname() string {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.nickname
}

// SetNickname sets the display identity.
func (h *Handle) SetNickname(name string) {
	h.stateMu.Lock()
	h.nickname = name
	h.stateMu.Unlock()
}

// Value returns a session-scoped value.
func (h *Handle) Value(key string) (any, bool) {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	v, ok := h.values[key]
	return v, ok
}

// SetValue stores a session-scoped value for the connection's lifetime.
func (h *Handle) SetValue(key string, value any) {
	h.stateMu.Lock()
	h.values[key] = value
	h.stateMu.Unlock()
}

// Enqueue appends payload to the send queue without blocking. It fails
// with ErrClosed once closing has begun and with ErrQueueFull when the
// queue is at capacity.
func (h *Handle) Enqueue(payload any) (*Future, error) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	m := message{payload: payload, future: newFuture()}
	select {
	case h.queue <- m:
		return m.future, nil
	default:
		return nil, ErrQueueFull
	}
}

// Send is Enqueue with enqueue failures folded into the returned Future.
func (h *Handle) Send(payload any) *Future {
	f, err := h.Enqueue(payload)
	if err != nil {
		return completedFuture(err)
	}
	return f
}

// Pending returns the number of queued, unwritten payloads.
func (h *Handle) Pending() int {
	return len(h.queue)
}

// Closed reports whether the handle has stopped accepting sends.
func (h *Handle) Closed() bool {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	return h.closed
}

// Done is closed once the transport has been torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Close stops accepting sends, cancels queued sends with ErrClosed and
// closes the transport. It is idempotent.
func (h *Handle) Close() {
	h.sendMu.Lock()
	h.closed = true
	h.sendMu.Unlock()

	h.killOnce.Do(func() { close(h.kill) })
	h.closeTransport()
}

// Evict is Close for callers that must not wait on the peer, such as a
// broadcaster that found the send queue full. New sends fail with
// ErrClosed once it returns. The transport is closed in the background and
// queued sends are cancelled when the writer stops.
func (h *Handle) Evict() {
	h.sendMu.Lock()
	h.closed = true
	h.sendMu.Unlock()

	h.killOnce.Do(func() { close(h.kill) })
	go h.closeTransport()
}

// CloseWith writes everything already queued, then final, then closes the
// transport. The returned Future reports the outcome of writing final; it
// fails with ErrClosed when the handle was already closing.
func (h *Handle) CloseWith(final any) *Future {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	if h.closed {
		return completedFuture(ErrClosed)
	}
	h.closed = true

	m := &message{payload: final, future: newFuture()}
	h.flushReq <- m
	return m.future
}

// Drain writes everything already queued and then closes the transport.
// If ctx expires first the handle is force-closed and ctx's error is
// returned.
func (h *Handle) Drain(ctx context.Context) error {
	h.sendMu.Lock()
	if !h.closed {
		h.closed = true
		h.flushReq <- nil
	}
	h.sendMu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		h.Close()
		return ctx.Err()
	}
}

// OnClose registers fn under key to run once after teardown. Registering
// the same key again replaces the previous hook. On an already torn-down
// handle fn runs immediately.
func (h *Handle) OnClose(key string, fn func(*Handle)) {
	h.hookMu.Lock()
	if h.hooksFired {
		h.hookMu.Unlock()
		fn(h)
		return
	}
	h.hooks[key] = fn
	h.hookMu.Unlock()
}

// RemoveCloseHook unregisters the hook stored under key.
func (h *Handle) RemoveCloseHook(key string) {
	h.hookMu.Lock()
	delete(h.hooks, key)
	h.hookMu.Unlock()
}

func (h *Handle) writeLoop() {
	defer h.teardown()

	for {
		// A pending kill wins over queued work.
		select {
		case <-h.kill:
			h.cancelPending()
			return
		default:
		}

		select {
		case <-h.kill:
			h.cancelPending()
			return
		case final := <-h.flushReq:
			h.flush(final)
			return
		case m := <-h.queue:
			if !h.write(m) {
				h.abort()
				return
			}
		}
	}
}

// flush writes the queued backlog and then final, if any.
func (h *Handle) flush(final *message) {
backlog:
	for {
		select {
		case <-h.kill:
			h.cancelPending()
			if final != nil {
				final.future.complete(ErrClosed)
			}
			return
		case m := <-h.queue:
			if !h.write(m) {
				h.cancelPending()
				if final != nil {
					final.future.complete(ErrClosed)
				}
				return
			}
		default:
			break backlog
		}
	}

	if final != nil {
		h.write(*final)
	}
}

func (h *Handle) write(m message) bool {
	err := h.transport.WriteMessage(m.payload)
	m.future.complete(err)
	if err != nil {
		logging.Debug().Err(err).Str("conn_id", h.id).Msg("write failed, closing connection")
		return false
	}
	return true
}

// abort stops the handle after a write failure.
func (h *Handle) abort() {
	h.sendMu.Lock()
	h.closed = true
	h.sendMu.Unlock()
	h.cancelPending()
}

// cancelPending fails every queued send, including a pending final
// payload, with ErrClosed. Callers must have set closed first so nothing
// new can arrive.
func (h *Handle) cancelPending() {
	for {
		select {
		case m := <-h.queue:
			m.future.complete(ErrClosed)
		case final := <-h.flushReq:
			if final != nil {
				final.future.complete(ErrClosed)
			}
		default:
			return
		}
	}
}

func (h *Handle) closeTransport() {
	h.closeOnce.Do(func() {
		if err := h.transport.Close(); err != nil {
			logging.Debug().Err(err).Str("conn_id", h.id).Msg("transport close returned error")
		}
	})
}

func (h *Handle) teardown() {
	h.closeTransport()
	close(h.done)

	h.hookMu.Lock()
	h.hooksFired = true
	hooks := make([]func(*Handle), 0, len(h.hooks))
	for _, fn := range h.hooks {
		hooks = append(hooks, fn)
	}
	h.hooks = nil
	h.hookMu.Unlock()

	for _, fn := range hooks {
		fn(h)
	}
}
