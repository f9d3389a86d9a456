// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package dispatch drives the per-connection chat state machine.

A transport calls exactly four hooks on the Dispatcher:

	d.OnConnect(h)           handshake done
	d.OnFrame(h, frame)      one decoded inbound frame
	d.OnIdleTimeout(h)       no reads within the idle window
	d.OnDisconnect(h)        transport closed by the peer or by error

HandleMessage is a convenience for transports that receive raw text
frames: it decodes, reports violations to the sender and then calls
OnFrame.

# States

	Connected --Join--> Joined --Join--> Joined (previous room left first)
	    any   --IdleTimeout / Disconnect--> Closed

Chat messages before a Join are dropped with an invalid_state notice to the
sender; the connection stays open. Typing indicators before a Join are
dropped silently. Frames on a Closed connection are ignored.

Idle timeouts remove the connection from its room and close it after a
{"type":"close","reason":"idle_timeout"} notice. The room is not told.
*/
package dispatch
