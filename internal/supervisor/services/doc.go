// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package services adapts the server's components to suture.Service.
//
//   - HTTPServerService runs an *http.Server and shuts it down on cancel.
//   - DrainService waits for cancel, then drains a component (room
//     registry, WebSocket server, embedded NATS server) within a grace period.
//   - RelayService runs the NATS relay and closes it on cancel.
//
// Every Serve method returns ctx.Err() after a requested stop and a wrapped
// error after an unexpected one, which suture answers with a restart.
package services
