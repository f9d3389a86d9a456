// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package websocket is the gorilla/websocket transport for Roomcast.

Server upgrades HTTP requests and, for each connection, wraps the socket in
a Conn (the session.Transport the core writes through) and a session.Handle,
then drives two goroutines:

  - the read loop, which feeds text frames to Hooks.HandleMessage
  - keepalive, which pings the peer every PingInterval

Writes never happen on these goroutines: the handle's own writer goroutine
owns the socket's write side, so a slow peer only ever backs up its own
send queue.

# Idle Detection

The read deadline is IdleTimeout from the last inbound frame. Pongs count
as inbound frames, so a peer that answers pings stays connected while
silent. When the deadline passes the read loop reports Hooks.OnIdleTimeout;
every other read failure reports Hooks.OnDisconnect.

# Origin Checking

Config.AllowedOrigins lists accepted Origin headers, with "*" accepting
any. An empty list accepts same-host origins only. Requests without an
Origin header are accepted, since only browsers send one.

# Shutdown

Server.Shutdown refuses new upgrades with 503 and drains every open
connection, so queued messages reach peers before the socket closes.
*/
package websocket
