// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateWebSocket,
		c.validateChat,
		c.validateNATS,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with '/', got: %q", c.Server.WSPath)
	}
	if c.Server.ShutdownGrace <= 0 {
		return fmt.Errorf("SHUTDOWN_GRACE must be positive")
	}
	if c.Server.Environment != "production" && c.Server.Environment != "development" {
		return fmt.Errorf("ENVIRONMENT must be one of: production, development")
	}
	return nil
}

// Transport limits
const (
	minMessageSize   = 64
	maxMessageSize   = 1 << 20
	maxSendQueueSize = 1 << 16
)

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.IdleTimeout <= 0 {
		return fmt.Errorf("WS_IDLE_TIMEOUT must be positive")
	}
	if ws.PingInterval <= 0 || ws.PingInterval >= ws.IdleTimeout {
		return fmt.Errorf("WS_PING_INTERVAL must be positive and shorter than WS_IDLE_TIMEOUT (%v)", ws.IdleTimeout)
	}
	if ws.WriteWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT must be positive")
	}
	if ws.HandshakeTimeout <= 0 {
		return fmt.Errorf("WS_HANDSHAKE_TIMEOUT must be positive")
	}
	if ws.MaxMessageSize < minMessageSize || ws.MaxMessageSize > maxMessageSize {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be between %d and %d", minMessageSize, maxMessageSize)
	}
	if ws.SendQueueSize < 1 || ws.SendQueueSize > maxSendQueueSize {
		return fmt.Errorf("WS_SEND_QUEUE_SIZE must be between 1 and %d", maxSendQueueSize)
	}
	if ws.ReadBufferSize < 0 || ws.WriteBufferSize < 0 {
		return fmt.Errorf("WS_READ_BUFFER_SIZE and WS_WRITE_BUFFER_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.FloodRate < 0 {
		return fmt.Errorf("CHAT_FLOOD_RATE must not be negative")
	}
	if c.Chat.FloodRate > 0 && c.Chat.FloodBurst < 1 {
		return fmt.Errorf("CHAT_FLOOD_BURST must be at least 1 when CHAT_FLOOD_RATE is set")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < 1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between 1 and 65535")
		}
	} else if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL invalid: %w", err)
	}
	if strings.TrimSpace(c.NATS.Topic) == "" {
		return fmt.Errorf("NATS_TOPIC is required when NATS_ENABLED=true")
	}
	if strings.ContainsAny(c.NATS.Topic, " \t*>") {
		return fmt.Errorf("NATS_TOPIC must be a literal subject without wildcards or whitespace, got: %q", c.NATS.Topic)
	}
	if c.NATS.PublishTimeout <= 0 {
		return fmt.Errorf("NATS_PUBLISH_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateCORS rejects an empty origin entry, which would never match.
func (c *Config) validateCORS() error {
	for _, origin := range c.Security.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("CORS_ORIGINS must not contain empty entries")
		}
	}
	for _, origin := range c.Server.AllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("ALLOWED_ORIGINS must not contain empty entries")
		}
	}
	return nil
}

// hasWildcardOrigin reports whether any list allows every origin.
func (c *Config) hasWildcardOrigin() bool {
	for _, list := range [][]string{c.Security.CORSOrigins, c.Server.AllowedOrigins} {
		for _, origin := range list {
			if origin == "*" {
				return true
			}
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if a wildcard origin is configured in
// production, which should be logged at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardOrigin()
}

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
