// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package main is the entry point for the Roomcast server.

Roomcast accepts WebSocket connections, lets each connection join one named
room and fans chat messages out to every member of that room. With NATS
enabled, several instances share rooms: each broadcast is also published
to a NATS subject and delivered by every other instance to its local
members.

Startup order:

 1. Configuration: koanf defaults, optional YAML file, environment
 2. Logging: zerolog (json or console)
 3. Embedded NATS server and relay (NATS_ENABLED, NATS_EMBEDDED)
 4. Room registry, dispatcher, WebSocket server, chi router
 5. Supervisor tree (suture v4) running every service

SIGINT or SIGTERM cancels the tree. Every room member and every unjoined
connection is then drained within SHUTDOWN_GRACE: queued messages are
flushed, the connection is closed and the room emptied.
*/
package main
