// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/relay"
)

// RelayRunner is the lifecycle of the cross-instance relay.
// *relay.Relay implements it.
type RelayRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// RelayService runs the relay under a supervisor. A relay whose
// subscription fails is restarted with backoff; the relay is closed only
// when the supervisor stops it.
type RelayService struct {
	relay RelayRunner
	name  string
}

// NewRelayService creates a new relay service wrapper.
func NewRelayService(r RelayRunner) *RelayService {
	return &RelayService{
		relay: r,
		name:  "nats-relay",
	}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	err := s.relay.Run(ctx)

	if ctx.Err() != nil {
		if cerr := s.relay.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Relay close failed")
		}
		return ctx.Err()
	}

	if errors.Is(err, relay.ErrClosed) {
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	}
	return fmt.Errorf("relay stopped: %w", err)
}

// String implements fmt.Stringer for suture's log messages.
func (s *RelayService) String() string {
	return s.name
}
