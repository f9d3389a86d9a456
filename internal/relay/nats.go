// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package relay

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/roomcast/roomcast/internal/logging"
)

// NewNATS creates a Relay over core NATS. JetStream is disabled and no
// queue group is used, so every instance receives every broadcast.
func NewNATS(cfg Config, local Broadcaster) (*Relay, error) {
	logger := NewLogger()
	natsOpts := natsOptions(cfg, logger)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		CloseTimeout:     cfg.PublishTimeout,
		SubscribeTimeout: cfg.PublishTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create watermill subscriber: %w", err), pub.Close())
	}

	return New(pub, sub, local, cfg, logger), nil
}

// NewLogger returns a Watermill logger backed by the application logger.
func NewLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLoggerForComponent("relay"))
}

func natsOptions(cfg Config, logger watermill.LoggerAdapter) []natsgo.Option {
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return []natsgo.Option{
		natsgo.Name("roomcast-" + cfg.InstanceID),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.FlusherTimeout(timeout),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
		natsgo.ErrorHandler(func(nc *natsgo.Conn, sub *natsgo.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS error", err, watermill.LogFields{
				"subject": subject,
			})
		}),
	}
}
