// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/relay"
)

// embeddedReadyTimeout bounds the wait for the embedded NATS server.
const embeddedReadyTimeout = 30 * time.Second

// initRelay starts the embedded NATS server when configured and connects
// the relay. The embedded server is nil when an external one is used.
func initRelay(cfg *config.Config, local relay.Broadcaster) (*relay.Relay, *relay.EmbeddedServer, error) {
	log := logging.WithComponent("relay")
	var (
		ns  *relay.EmbeddedServer
		url string
		err error
	)

	if cfg.NATS.EmbeddedServer {
		ns, err = relay.NewEmbeddedServer(relay.ServerConfig{
			Host:         cfg.NATS.Host,
			Port:         cfg.NATS.Port,
			ReadyTimeout: embeddedReadyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		url = ns.ClientURL()
		log.Info().
			Str("url", url).
			Str("configured", cfg.NATSListenURL()).
			Msg("Embedded NATS server started")
	}

	rel, err := relay.NewNATS(relay.ConfigFrom(cfg, url), local)
	if err != nil {
		if ns != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
			defer cancel()
			_ = ns.Shutdown(ctx)
		}
		return nil, nil, fmt.Errorf("connect NATS relay: %w", err)
	}

	log.Info().
		Str("topic", cfg.NATS.Topic).
		Str("instance_id", rel.InstanceID()).
		Msg("NATS relay initialized")
	return rel, ns, nil
}
