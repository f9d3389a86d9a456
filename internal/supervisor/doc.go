// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package supervisor runs the server's long-lived services under a suture v4
supervisor tree.

# Overview

	RootSupervisor ("roomcast")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── DrainService "room-registry"
	│   ├── RelayService (if NATS_ENABLED)
	│   └── DrainService "nats-server" (if NATS_EMBEDDED)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService
	    └── DrainService "websocket-server"

Crashed services are restarted with backoff; a failure in the messaging
layer does not stop the api layer. Supervisor events are logged through
sutureslog into the zerolog-backed slog logger.

# Shutdown

Canceling the context passed to Serve stops every service. Drain services
then run their target's Shutdown with a fresh grace-period context:
the room registry drains every member, the WebSocket server refuses new
upgrades and drains connections that never joined a room, and the HTTP
server stops accepting requests. TreeConfig.ShutdownTimeout must exceed
the grace period, or suture abandons the drain.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLoggerForComponent("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewDrainService("room-registry", registry, grace))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, grace))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)
*/
package supervisor
