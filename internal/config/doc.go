// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

/*
Package config provides centralized configuration management for Roomcast.

Configuration is loaded with koanf from three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml or
    /etc/roomcast/config.yaml
 3. Environment variables, mapped explicitly to config keys

Unmapped environment variables are ignored.

# Environment Variables

Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 53134)
  - WS_PATH: WebSocket endpoint path (default: /ws)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
  - SHUTDOWN_GRACE: Time allowed for queued messages to flush (default: 5s)
  - ALLOWED_ORIGINS: Comma-separated WebSocket origins, "*" for any
  - ENVIRONMENT: production or development (default: production)

WebSocket (WebSocketConfig):
  - WS_IDLE_TIMEOUT: Read idle timeout (default: 60s)
  - WS_PING_INTERVAL: Ping period, must be below the idle timeout (default: 54s)
  - WS_WRITE_WAIT: Per-frame write deadline (default: 10s)
  - WS_MAX_MESSAGE_SIZE: Max inbound frame in bytes (default: 10240)
  - WS_SEND_QUEUE_SIZE: Per-connection send queue capacity (default: 256)
  - WS_COMPRESSION: Negotiate permessage-deflate (default: true)

Chat (ChatConfig):
  - CHAT_ECHO_TO_SENDER: Deliver chat messages back to the author (default: true)
  - CHAT_FLOOD_RATE, CHAT_FLOOD_BURST: Inbound frame rate limit (default: 20/s, 40)
  - CHAT_EVICT_SLOW_CONSUMERS: Close connections whose queue overflows (default: true)

NATS relay (NATSConfig):
  - NATS_ENABLED: Fan broadcasts out across instances (default: false)
  - NATS_URL: Server URL (default: nats://127.0.0.1:4222)
  - NATS_EMBEDDED: Run an in-process NATS server (default: false)
  - NATS_TOPIC: Relay subject (default: roomcast.broadcast)
  - NATS_INSTANCE_ID: Instance identity, generated when blank

Security (SecurityConfig):
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW: Per-IP HTTP limit (default: 60 per 1m)
  - DISABLE_RATE_LIMIT: Turn the limit off
  - CORS_ORIGINS: Comma-separated origins for /api

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include caller file:line

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	addr := cfg.Addr()
*/
package config
