// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/roomcast/roomcast/internal/api"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/delivery"
	"github.com/roomcast/roomcast/internal/dispatch"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/relay"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/supervisor"
	"github.com/roomcast/roomcast/internal/supervisor/services"
	"github.com/roomcast/roomcast/internal/websocket"
)

// components holds the wired server before it is handed to the supervisor.
type components struct {
	registry   *room.Registry
	dispatcher *dispatch.Dispatcher
	wsServer   *websocket.Server
	handler    *api.Handler
	router     http.Handler
	httpServer *http.Server

	// nil unless NATS is enabled
	relay *relay.Relay
	// nil unless the embedded NATS server is enabled
	natsServer *relay.EmbeddedServer
}

func buildComponents(cfg *config.Config) (*components, error) {
	channel := delivery.NewQueueChannel(delivery.WithSlowConsumerEviction(cfg.Chat.EvictSlowConsumers))
	c := &components{
		registry: room.NewRegistry(room.WithChannel(channel)),
	}

	opts := []dispatch.Option{dispatch.WithChannel(channel)}
	if cfg.NATS.Enabled {
		rel, ns, err := initRelay(cfg, c.registry)
		if err != nil {
			return nil, err
		}
		c.relay, c.natsServer = rel, ns
		opts = append(opts, dispatch.WithRelay(rel))
	}

	c.dispatcher = dispatch.New(c.registry, dispatch.Config{
		EchoToSender: cfg.Chat.EchoToSender,
		FloodRate:    cfg.Chat.FloodRate,
		FloodBurst:   cfg.Chat.FloodBurst,
	}, opts...)

	c.wsServer = websocket.NewServer(websocket.ConfigFrom(cfg), c.dispatcher)

	c.handler = api.NewHandler(c.registry)
	c.handler.AddReadinessCheck("websocket", c.wsServer.Accepting)
	if c.relay != nil {
		c.handler.AddReadinessCheck("relay", c.relay.Ready)
	}

	c.router = api.NewRouter(
		c.handler,
		c.wsServer,
		cfg.Server.WSPath,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg)),
	).SetupChi()

	c.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           c.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logging.Info().
		Bool("echo_to_sender", cfg.Chat.EchoToSender).
		Float64("flood_rate", cfg.Chat.FloodRate).
		Bool("evict_slow_consumers", cfg.Chat.EvictSlowConsumers).
		Msg("Components initialized")
	return c, nil
}

// register adds every component to the supervisor tree. grace bounds each
// drain.
func (c *components) register(tree *supervisor.SupervisorTree, grace time.Duration) {
	tree.AddMessagingService(services.NewDrainService("room-registry", c.registry, grace))
	if c.relay != nil {
		tree.AddMessagingService(services.NewRelayService(c.relay))
	}
	if c.natsServer != nil {
		tree.AddMessagingService(services.NewDrainService("nats-server", c.natsServer, grace))
	}

	tree.AddAPIService(services.NewHTTPServerService(c.httpServer, grace))
	tree.AddAPIService(services.NewDrainService("websocket-server", c.wsServer, grace))

	logging.Info().
		Str("addr", c.httpServer.Addr).
		Stringer("components", c).
		Msg("Services registered with supervisor tree")
}

// String describes the wiring for startup logs.
func (c *components) String() string {
	return fmt.Sprintf("relay=%t embedded_nats=%t", c.relay != nil, c.natsServer != nil)
}
