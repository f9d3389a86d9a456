// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package relay fans room broadcasts out across Roomcast instances.

Each instance publishes the payloads its dispatcher broadcasts to a single
NATS subject, wrapped in an Envelope that names the room and the publishing
instance. Every instance subscribes to the same subject without a queue
group, skips its own messages, and hands the rest to the local room
registry, so members connected to different instances share a room.

Messaging goes through Watermill (core NATS via watermill-nats, JetStream
disabled). Delivery is at-most-once: a relay that is disconnected or whose
publish circuit breaker is open drops payloads rather than blocking chat.

For single-node deployments EmbeddedServer runs NATS in-process.
*/
package relay
