// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/roomcast/config.yaml",
}

// ConfigPathEnvVar names the environment variable that overrides the
// config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config populated with built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          53134,
			WSPath:        "/ws",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   120 * time.Second,
			ShutdownGrace: 5 * time.Second,
			Environment:   "production",
		},
		WebSocket: WebSocketConfig{
			IdleTimeout:      60 * time.Second,
			PingInterval:     54 * time.Second,
			WriteWait:        10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			MaxMessageSize:   10240,
			SendQueueSize:    256,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			Compression:      true,
		},
		Chat: ChatConfig{
			EchoToSender:       true,
			FloodRate:          20,
			FloodBurst:         40,
			EvictSlowConsumers: true,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			Host:           "127.0.0.1",
			Port:           4222,
			Topic:          "roomcast.broadcast",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			PublishTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration using koanf with layered sources:
//
//  1. Defaults from defaultConfig
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// A blank nats.instance_id is replaced with a fresh UUID.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, WS_IDLE_TIMEOUT -> websocket.idle_timeout
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.NATS.InstanceID == "" {
		cfg.NATS.InstanceID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "" if none.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when set from env.
var sliceConfigPaths = []string{
	"server.allowed_origins",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":          "server.host",
	"http_port":          "server.port",
	"ws_path":            "server.ws_path",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_grace":     "server.shutdown_grace",
	"allowed_origins":    "server.allowed_origins",
	"environment":        "server.environment",

	// WebSocket
	"ws_idle_timeout":      "websocket.idle_timeout",
	"ws_ping_interval":     "websocket.ping_interval",
	"ws_write_wait":        "websocket.write_wait",
	"ws_handshake_timeout": "websocket.handshake_timeout",
	"ws_max_message_size":  "websocket.max_message_size",
	"ws_send_queue_size":   "websocket.send_queue_size",
	"ws_read_buffer_size":  "websocket.read_buffer_size",
	"ws_write_buffer_size": "websocket.write_buffer_size",
	"ws_compression":       "websocket.compression",

	// Chat
	"chat_echo_to_sender":       "chat.echo_to_sender",
	"chat_flood_rate":           "chat.flood_rate",
	"chat_flood_burst":          "chat.flood_burst",
	"chat_evict_slow_consumers": "chat.evict_slow_consumers",

	// NATS relay
	"nats_enabled":         "nats.enabled",
	"nats_url":             "nats.url",
	"nats_embedded":        "nats.embedded_server",
	"nats_host":            "nats.host",
	"nats_port":            "nats.port",
	"nats_topic":           "nats.topic",
	"nats_instance_id":     "nats.instance_id",
	"nats_max_reconnects":  "nats.max_reconnects",
	"nats_reconnect_wait":  "nats.reconnect_wait",
	"nats_publish_timeout": "nats.publish_timeout",

	// Security
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// FilePath returns the config file Load would read, or "" if none exists.
func FilePath() string {
	return findConfigFile()
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The caller is responsible for synchronizing access to reloaded config.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
