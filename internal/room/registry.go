// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/delivery"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/session"
)

// ErrShutdown is returned by Join once Shutdown has started.
var ErrShutdown = errors.New("room registry shut down")

// Leave causes, used as metric labels.
const (
	reasonLeave           = "leave"
	reasonClosed          = "closed"
	reasonDeliveryFailure = "delivery_failure"
)

// MemberFailure describes one member a broadcast could not reach.
type MemberFailure struct {
	HandleID string
	Err      error
}

// BroadcastResult summarises one fan-out.
type BroadcastResult struct {
	Room      string
	Attempted int
	Delivered int
	Failures  []MemberFailure
}

// RoomInfo is a point-in-time summary of one room.
type RoomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// room maps each member to the key of the close hook its join registered.
type room struct {
	name    string
	mu      sync.RWMutex
	members map[*session.Handle]string
	dead    bool
}

// Registry is the process-wide room index. Construct one with NewRegistry
// and pass it to the dispatcher and transport.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	channel  delivery.Channel
	hookID   string
	joinSeq  atomic.Uint64
	shutdown atomic.Bool

	roomCount   atomic.Int64
	memberCount atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithChannel sets the delivery channel used by Broadcast.
func WithChannel(ch delivery.Channel) Option {
	return func(r *Registry) {
		if ch != nil {
			r.channel = ch
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:   make(map[string]*room),
		channel: delivery.NewQueueChannel(),
		hookID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// hookKey is unique per join, so a leave only ever removes the hook its
// own join registered.
func (r *Registry) hookKey(name string, seq uint64) string {
	return "room:" + r.hookID + ":" + name + ":" + strconv.FormatUint(seq, 10)
}

// Join adds h to the named room, creating it if needed. Joining a room the
// handle is already in is a no-op. Closed handles are rejected with
// session.ErrClosed.
func (r *Registry) Join(name string, h *session.Handle) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("join room %q: %w", name, session.ErrInvalidState)
	}
	if r.shutdown.Load() {
		return fmt.Errorf("join room %q: %w", name, ErrShutdown)
	}
	if h.Closed() {
		return fmt.Errorf("join room %q: %w", name, session.ErrClosed)
	}

	key := r.hookKey(name, r.joinSeq.Add(1))
	for {
		rm := r.getOrCreate(name)

		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			r.forget(rm)
			continue
		}
		if _, ok := rm.members[h]; ok {
			rm.mu.Unlock()
			return nil
		}
		rm.members[h] = key
		rm.mu.Unlock()
		break
	}

	r.memberCount.Add(1)
	metrics.RecordJoin()
	r.publishGauges()

	// Runs immediately if h was torn down after the Closed check above.
	h.OnClose(key, func(closed *session.Handle) {
		r.leave(name, closed, reasonClosed)
	})

	logging.Debug().
		Str("conn_id", h.ID()).
		Str("room", name).
		Str("nick", h.Nickname()).
		Msg("joined room")
	return nil
}

// Leave removes h from the named room. It is a no-op when h is not a
// member or the room does not exist. Leave never closes h.
func (r *Registry) Leave(name string, h *session.Handle) {
	r.leave(name, h, reasonLeave)
}

func (r *Registry) leave(name string, h *session.Handle, reason string) {
	rm := r.lookup(name)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	key, ok := rm.members[h]
	if !ok {
		rm.mu.Unlock()
		return
	}
	delete(rm.members, h)
	empty := len(rm.members) == 0
	if empty {
		rm.dead = true
	}
	rm.mu.Unlock()

	if empty {
		r.forget(rm)
	}
	if reason != reasonClosed {
		h.RemoveCloseHook(key)
	}

	r.memberCount.Add(-1)
	metrics.RecordLeave(reason)
	r.publishGauges()

	logging.Debug().
		Str("conn_id", h.ID()).
		Str("room", name).
		Str("reason", reason).
		Msg("left room")
}

// Broadcast sends payload to every current member of the named room.
func (r *Registry) Broadcast(name string, payload any) BroadcastResult {
	return r.broadcast(name, payload, nil)
}

// BroadcastExcept is Broadcast skipping one handle, typically the sender.
func (r *Registry) BroadcastExcept(name string, payload any, except *session.Handle) BroadcastResult {
	return r.broadcast(name, payload, except)
}

func (r *Registry) broadcast(name string, payload any, except *session.Handle) BroadcastResult {
	result := BroadcastResult{Room: name}

	rm := r.lookup(name)
	if rm == nil {
		return result
	}

	start := time.Now()

	rm.mu.RLock()
	targets := make([]*session.Handle, 0, len(rm.members))
	for h := range rm.members {
		if h != except {
			targets = append(targets, h)
		}
	}
	outcomes := r.channel.SendMany(targets, payload)
	rm.mu.RUnlock()

	metrics.RecordBroadcast(len(targets), time.Since(start))

	result.Attempted = len(outcomes)
	var failed []*session.Handle
	for _, o := range outcomes {
		if o.OK() {
			result.Delivered++
			continue
		}
		result.Failures = append(result.Failures, MemberFailure{HandleID: o.Handle.ID(), Err: o.Err})
		failed = append(failed, o.Handle)
	}

	for _, h := range failed {
		r.leave(name, h, reasonDeliveryFailure)
	}

	if len(failed) > 0 {
		logging.Debug().
			Str("room", name).
			Int("attempted", result.Attempted).
			Int("failed", len(failed)).
			Msg("broadcast had delivery failures")
	}
	return result
}

// CloseAll closes every member of the named room and returns how many
// handles were closed. Members leave through their close hooks.
func (r *Registry) CloseAll(name string) int {
	members := r.MembersOf(name)
	for _, h := range members {
		h.Close()
	}
	return len(members)
}

// IsMember reports whether h is currently a member of the named room.
func (r *Registry) IsMember(name string, h *session.Handle) bool {
	rm := r.lookup(name)
	if rm == nil {
		return false
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	_, ok := rm.members[h]
	return ok
}

// MembersOf returns a snapshot of the room's members. The slice is a copy;
// later joins and leaves do not affect it.
func (r *Registry) MembersOf(name string) []*session.Handle {
	rm := r.lookup(name)
	if rm == nil {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]*session.Handle, 0, len(rm.members))
	for h := range rm.members {
		out = append(out, h)
	}
	return out
}

// Rooms returns a snapshot of every non-empty room, sorted by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.RLock()
		n := len(rm.members)
		rm.mu.RUnlock()
		if n > 0 {
			infos = append(infos, RoomInfo{Name: rm.name, Members: n})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Stats returns the current number of rooms and memberships.
func (r *Registry) Stats() (rooms, members int) {
	return int(r.roomCount.Load()), int(r.memberCount.Load())
}

// Shutdown stops accepting joins and drains every member of every room in
// parallel. Members that have not flushed when ctx expires are force-closed.
// Individual connection errors are logged, not returned; the error reports
// only whether the grace period was exceeded.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.shutdown.Store(true)

	r.mu.RLock()
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	r.mu.RUnlock()

	seen := make(map[*session.Handle]struct{})
	for _, name := range names {
		for _, h := range r.MembersOf(name) {
			seen[h] = struct{}{}
		}
	}

	logging.Info().
		Int("rooms", len(names)).
		Int("connections", len(seen)).
		Msg("draining rooms")

	var forced atomic.Int32
	var wg sync.WaitGroup
	for h := range seen {
		wg.Add(1)
		go func(h *session.Handle) {
			defer wg.Done()
			if err := h.Drain(ctx); err != nil {
				forced.Add(1)
				logging.Debug().Err(err).Str("conn_id", h.ID()).Msg("connection force-closed during shutdown")
			}
		}(h)
	}
	wg.Wait()

	if n := forced.Load(); n > 0 {
		return fmt.Errorf("%d connections force-closed: %w", n, ctx.Err())
	}
	return nil
}

func (r *Registry) lookup(name string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[name]
}

func (r *Registry) getOrCreate(name string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[name]; ok {
		return rm
	}
	rm = &room{name: name, members: make(map[*session.Handle]string)}
	r.rooms[name] = rm
	r.roomCount.Add(1)
	return rm
}

// forget removes a dead room from the map if it is still the current entry.
func (r *Registry) forget(rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[rm.name] == rm {
		delete(r.rooms, rm.name)
		r.roomCount.Add(-1)
	}
}

func (r *Registry) publishGauges() {
	rooms, members := r.Stats()
	metrics.UpdateRoomGauges(rooms, members)
}
