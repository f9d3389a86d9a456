// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package relay

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
)

// BreakerConfig configures the publish circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig trips after five consecutive failures and probes
// again after ten seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// NewCircuitBreaker creates a circuit breaker that reports its state to
// Prometheus and the log.
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			metrics.RecordCircuitBreakerState(name, int(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	metrics.RecordCircuitBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
