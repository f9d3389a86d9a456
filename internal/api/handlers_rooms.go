// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomcast/roomcast/internal/validation"
)

// roomPath holds the path parameters of /api/v1/rooms/{room}. The limits
// match those applied to join frames.
type roomPath struct {
	Room string `json:"room" validate:"required,notblank,max=64"`
}

// ListRooms returns every non-empty room with its member count.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.rooms.Rooms()
	_, members := h.rooms.Stats()

	respondJSON(w, r, http.StatusOK, RoomList{
		Rooms:       rooms,
		RoomCount:   len(rooms),
		MemberCount: members,
	})
}

// GetRoom returns a point-in-time snapshot of one room's members.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	params := roomPath{Room: chi.URLParam(r, "room")}
	if verr := validation.ValidateStruct(&params); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, apiErr.Message, apiErr.Details)
		return
	}

	handles := h.rooms.MembersOf(params.Room)
	if len(handles) == 0 {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Room not found", nil)
		return
	}

	members := snapshotMembers(handles)
	respondJSON(w, r, http.StatusOK, RoomDetail{
		Name:    params.Room,
		Count:   len(members),
		Members: members,
	})
}
