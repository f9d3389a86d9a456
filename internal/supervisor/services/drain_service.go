// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package services

import (
	"context"
	"time"

	"github.com/roomcast/roomcast/internal/logging"
)

const defaultShutdownTimeout = 10 * time.Second

// Drainer is a component that is idle until shutdown and then needs a
// bounded time to release its resources. *room.Registry,
// *websocket.Server and *relay.EmbeddedServer implement it.
type Drainer interface {
	Shutdown(ctx context.Context) error
}

// DrainService ties a Drainer's shutdown to supervisor cancellation.
//
// Serve blocks until the context is canceled, then calls Shutdown with a
// fresh grace-period context. Shutdown errors are logged and swallowed.
type DrainService struct {
	target Drainer
	grace  time.Duration
	name   string
}

// NewDrainService creates a drain service named name. A non-positive
// grace selects the default of 10s.
func NewDrainService(name string, target Drainer, grace time.Duration) *DrainService {
	if grace <= 0 {
		grace = defaultShutdownTimeout
	}
	return &DrainService{
		target: target,
		grace:  grace,
		name:   name,
	}
}

// Serve implements suture.Service.
func (s *DrainService) Serve(ctx context.Context) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	start := time.Now()
	if err := s.target.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Dur("grace", s.grace).Msg("Drain did not complete cleanly")
	} else {
		logging.Info().Str("service", s.name).Dur("elapsed", time.Since(start)).Msg("Drained")
	}

	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *DrainService) String() string {
	return s.name
}
