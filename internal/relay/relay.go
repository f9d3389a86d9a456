// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/room"
)

// Metadata keys set on every relayed message.
const (
	MetadataOrigin = "origin"
	MetadataRoom   = "room"
)

// DefaultBacklogSize bounds the outbound publish queue.
const DefaultBacklogSize = 1024

var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("relay closed")

	// ErrBacklogFull is recorded when a publish is dropped because the
	// outbound queue is full.
	ErrBacklogFull = errors.New("relay backlog full")

	errSubscriptionClosed = errors.New("relay subscription closed")
)

// Broadcaster delivers relayed payloads to local room members.
// *room.Registry implements it.
type Broadcaster interface {
	Broadcast(name string, payload any) room.BroadcastResult
}

// Envelope is the wire form of one relayed room payload.
type Envelope struct {
	Room    string          `json:"room"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Config holds relay settings.
type Config struct {
	URL            string
	Topic          string
	InstanceID     string
	MaxReconnects  int
	ReconnectWait  time.Duration
	PublishTimeout time.Duration
	BacklogSize    int
}

// ConfigFrom builds a relay Config. url overrides cfg.NATS.URL when set,
// which is how an embedded server's client URL is passed in.
func ConfigFrom(cfg *config.Config, url string) Config {
	if url == "" {
		url = cfg.NATS.URL
	}
	return Config{
		URL:            url,
		Topic:          cfg.NATS.Topic,
		InstanceID:     cfg.NATS.InstanceID,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		PublishTimeout: cfg.NATS.PublishTimeout,
		BacklogSize:    DefaultBacklogSize,
	}
}

// Relay fans room broadcasts out to other instances and delivers theirs
// locally. Publish never blocks: payloads are queued and published by Run.
// Messages carrying this instance's origin are skipped on receipt, since
// local members already received them.
type Relay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	local      Broadcaster
	topic      string
	instanceID string
	breaker    *gobreaker.CircuitBreaker[interface{}]
	logger     watermill.LoggerAdapter

	backlog chan *message.Message
	ready   atomic.Bool

	mu     sync.RWMutex
	closed bool
}

// New creates a Relay over an existing publisher and subscriber.
func New(pub message.Publisher, sub message.Subscriber, local Broadcaster, cfg Config, logger watermill.LoggerAdapter) *Relay {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.BacklogSize <= 0 {
		cfg.BacklogSize = DefaultBacklogSize
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	return &Relay{
		publisher:  pub,
		subscriber: sub,
		local:      local,
		topic:      cfg.Topic,
		instanceID: cfg.InstanceID,
		breaker:    NewCircuitBreaker(DefaultBreakerConfig("relay-publish")),
		logger:     logger,
		backlog:    make(chan *message.Message, cfg.BacklogSize),
	}
}

// InstanceID returns the origin stamped on outbound messages.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// Ready reports whether Run has subscribed and is relaying.
func (r *Relay) Ready() bool {
	return r.ready.Load()
}

// Publish queues payload for delivery to other instances' members of
// roomName. Payloads that cannot be encoded, and payloads arriving while
// the backlog is full, are dropped and counted.
func (r *Relay) Publish(roomName string, payload any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	data, err := protocol.Encode(payload)
	if err != nil {
		metrics.RecordRelayPublish(err)
		r.logger.Error("Failed to encode relay payload", err, watermill.LogFields{"room": roomName})
		return
	}

	env, err := json.Marshal(Envelope{
		Room:    roomName,
		Origin:  r.instanceID,
		Payload: data,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		metrics.RecordRelayPublish(err)
		return
	}

	msg := message.NewMessage(uuid.NewString(), env)
	msg.Metadata.Set(MetadataOrigin, r.instanceID)
	msg.Metadata.Set(MetadataRoom, roomName)

	select {
	case r.backlog <- msg:
	default:
		metrics.RecordRelayPublish(ErrBacklogFull)
		r.logger.Info("Relay backlog full, dropping message", watermill.LogFields{"room": roomName})
	}
}

// Run subscribes to the relay topic, then publishes queued messages and
// delivers received ones until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}

	r.ready.Store(true)
	defer r.ready.Store(false)
	r.logger.Info("Relay started", watermill.LogFields{
		"topic":       r.topic,
		"instance_id": r.instanceID,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.publishLoop(ctx)
	}()

	err = r.consume(ctx, messages)
	cancel()
	wg.Wait()
	return err
}

// Close stops accepting publishes and closes the publisher and subscriber.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return errors.Join(r.subscriber.Close(), r.publisher.Close())
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.backlog:
			err := r.publish(msg)
			metrics.RecordRelayPublish(err)
			if err != nil {
				r.logger.Error("Relay publish failed", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"room":         msg.Metadata.Get(MetadataRoom),
				})
			}
		}
	}
}

func (r *Relay) publish(msg *message.Message) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.publisher.Publish(r.topic, msg)
	})
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(r.breaker.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(r.breaker.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(r.breaker.Name(), "failure")
	}
	return err
}

func (r *Relay) consume(ctx context.Context, messages <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errSubscriptionClosed
			}
			r.handle(msg)
			msg.Ack()
		}
	}
}

// handle delivers one received message locally. Malformed messages are
// acknowledged and dropped; redelivery would not fix them.
func (r *Relay) handle(msg *message.Message) {
	if msg.Metadata.Get(MetadataOrigin) == r.instanceID {
		metrics.RecordRelaySkipped("own_origin")
		return
	}

	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		metrics.RecordRelaySkipped("invalid_envelope")
		r.logger.Error("Dropping malformed relay message", err, watermill.LogFields{"message_uuid": msg.UUID})
		return
	}
	if env.Origin == r.instanceID {
		metrics.RecordRelaySkipped("own_origin")
		return
	}
	if env.Room == "" || len(env.Payload) == 0 {
		metrics.RecordRelaySkipped("invalid_envelope")
		return
	}

	metrics.RecordRelayReceived()
	res := r.local.Broadcast(env.Room, env.Payload)
	r.logger.Trace("Relayed message delivered", watermill.LogFields{
		"room":      env.Room,
		"origin":    env.Origin,
		"delivered": res.Delivered,
	})
}
