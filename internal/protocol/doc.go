// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package protocol defines the JSON text frames exchanged with chat clients.

Inbound frames are keyed by "type":

	{"type":"init","room":"lobby","nick":"alice"}   join a room ("join" and "name" accepted too)
	{"type":"msg","msg":"hi"}                       chat message to the current room
	{"type":"typing","isTyping":true}               typing indicator

Decode turns one frame into a Join, ChatMessage or TypingIndicator. Any
malformed, unknown or invalid frame yields an error wrapping
ErrProtocolViolation; the connection that sent it stays open.

Outbound payloads:

	{"type":"msg","msg":"hi","sendUser":"alice"}
	{"type":"typing","sendUser":"alice","isTyping":true}
	{"type":"error","code":"invalid_state","message":"join a room first"}
	{"type":"close","reason":"idle_timeout"}

Outbound payloads never carry connection ids; senders are identified by
nickname only.
*/
package protocol
