// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Struct tags use koanf for loading from multiple sources.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Chat      ChatConfig      `koanf:"chat"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host          string        `koanf:"host"`
	Port          int           `koanf:"port"`
	WSPath        string        `koanf:"ws_path"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty means same-origin only; "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Environment is "production" or "development".
	Environment string `koanf:"environment"`
}

// WebSocketConfig holds per-connection transport settings.
type WebSocketConfig struct {
	// IdleTimeout is the read deadline. Any inbound frame, pongs included,
	// extends it.
	IdleTimeout      time.Duration `koanf:"idle_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	WriteWait        time.Duration `koanf:"write_wait"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	SendQueueSize    int           `koanf:"send_queue_size"`
	ReadBufferSize   int           `koanf:"read_buffer_size"`
	WriteBufferSize  int           `koanf:"write_buffer_size"`
	Compression      bool          `koanf:"compression"`
}

// ChatConfig holds dispatcher policy.
type ChatConfig struct {
	// EchoToSender delivers a chat message back to its author.
	EchoToSender bool `koanf:"echo_to_sender"`

	// FloodRate is the sustained inbound frame rate per connection.
	// Zero disables the flood guard.
	FloodRate  float64 `koanf:"flood_rate"`
	FloodBurst int     `koanf:"flood_burst"`

	// EvictSlowConsumers closes connections whose send queue overflows.
	EvictSlowConsumers bool `koanf:"evict_slow_consumers"`
}

// NATSConfig holds cross-instance relay settings.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	Topic          string        `koanf:"topic"`
	InstanceID     string        `koanf:"instance_id"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
}

// SecurityConfig holds request rate limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// NATSListenURL returns the client URL of the embedded NATS server.
func (c *Config) NATSListenURL() string {
	return "nats://" + net.JoinHostPort(c.NATS.Host, strconv.Itoa(c.NATS.Port))
}
