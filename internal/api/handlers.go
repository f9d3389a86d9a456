// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"sort"
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
)

// RoomDirectory is the read side of the room registry.
// *room.Registry implements it.
type RoomDirectory interface {
	Rooms() []room.RoomInfo
	Stats() (rooms, members int)
	MembersOf(name string) []*session.Handle
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func() bool

// Handler serves the HTTP API.
type Handler struct {
	rooms     RoomDirectory
	startTime time.Time

	mu     sync.RWMutex
	checks map[string]ReadinessCheck
}

// NewHandler creates a Handler over the given room directory.
func NewHandler(rooms RoomDirectory) *Handler {
	return &Handler{
		rooms:     rooms,
		startTime: time.Now(),
		checks:    make(map[string]ReadinessCheck),
	}
}

// AddReadinessCheck registers a named check consulted by /health/ready.
// Registering the same name twice replaces the earlier check.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.mu.Lock()
	h.checks[name] = check
	h.mu.Unlock()
}

// runChecks evaluates every readiness check.
func (h *Handler) runChecks() (map[string]bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	results := make(map[string]bool, len(h.checks))
	ready := true
	for name, check := range h.checks {
		ok := check()
		results[name] = ok
		ready = ready && ok
	}
	return results, ready
}

// MemberInfo describes one room member in a room snapshot.
type MemberInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

// RoomDetail is the response body of GET /api/v1/rooms/{room}.
type RoomDetail struct {
	Name    string       `json:"name"`
	Count   int          `json:"count"`
	Members []MemberInfo `json:"members"`
}

// RoomList is the response body of GET /api/v1/rooms.
type RoomList struct {
	Rooms       []room.RoomInfo `json:"rooms"`
	RoomCount   int             `json:"room_count"`
	MemberCount int             `json:"member_count"`
}

func snapshotMembers(handles []*session.Handle) []MemberInfo {
	members := make([]MemberInfo, 0, len(handles))
	for _, m := range handles {
		members = append(members, MemberInfo{ID: m.ID(), Nickname: m.Nickname()})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Nickname != members[j].Nickname {
			return members[i].Nickname < members[j].Nickname
		}
		return members[i].ID < members[j].ID
	})
	return members
}
