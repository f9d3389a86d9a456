// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package room maintains the concurrent index of chat rooms and their live
members, and fans payloads out to them.

# Membership

A Registry maps room names to member sets. Rooms are created by the first
Join and pruned as soon as the last member leaves. Join never removes a
handle from another room; callers that want single-room semantics leave the
old room first (the dispatcher does).

The registry holds handles without owning them: Leave never closes a
connection, while closing a connection always removes it from every room
it joined through this registry (via a session close hook).

# Broadcast

Broadcast enqueues the payload for every member while holding the room's
read lock. Consequently:

  - a handle whose Leave has returned never receives a later broadcast
  - a handle that joins after Broadcast returns never receives that payload
  - each member present at the call gets exactly one copy

Members whose enqueue fails are reported in BroadcastResult.Failures and
removed from the room afterwards. A missing room yields an empty result.

# Locking

The registry mutex guards only the name → room map; every room has its own
mutex. The two are never held together. A room that was pruned is marked
dead so that a Join racing the prune retries on a fresh room instead of
joining an orphan.
*/
package room
