// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package config

import (
	"testing"
	"time"
)

func TestAddr(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	if got := cfg.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want 127.0.0.1:8080", got)
	}

	cfg.Server.Host = "::1"
	if got := cfg.Addr(); got != "[::1]:8080" {
		t.Errorf("Addr() = %q, want [::1]:8080", got)
	}
}

func TestNATSListenURL(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.NATSListenURL(); got != "nats://127.0.0.1:4222" {
		t.Errorf("NATSListenURL() = %q", got)
	}
}

func TestValidateNATSURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"nats://localhost:4222", false},
		{"nats://192.168.1.100:4222", false},
		{"tls://nats.example.com:4443", false},
		{"ws://nats.example.com", false},
		{"wss://nats.example.com", false},
		{"http://nats.example.com", true},
		{"nats://", true},
		{"localhost:4222", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateNATSURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateNATSURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_EmbeddedNATSSkipsURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.EmbeddedServer = true
	cfg.NATS.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	cfg.NATS.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject port 0 for embedded server")
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Logging.Level = level
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() with level %q = %v", level, err)
			}
		})
	}
}

func TestValidateRateLimits(t *testing.T) {
	tests := []struct {
		name     string
		reqs     int
		window   time.Duration
		disabled bool
		wantErr  bool
	}{
		{"defaults", 60, time.Minute, false, false},
		{"zero requests", 0, time.Minute, false, true},
		{"too many requests", 100001, time.Minute, false, true},
		{"window too short", 10, time.Millisecond, false, true},
		{"window too long", 10, 2 * time.Hour, false, true},
		{"disabled ignores bounds", 0, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.RateLimitReqs = tt.reqs
			cfg.Security.RateLimitWindow = tt.window
			cfg.Security.RateLimitDisabled = tt.disabled
			err := cfg.validateRateLimits()
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRateLimits() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_EmptyOriginEntry(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.CORSOrigins = []string{"https://ok.example", " "}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject empty CORS origin")
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := defaultConfig()
	if cfg.ShouldWarnAboutCORS() {
		t.Error("no origins configured should not warn")
	}

	cfg.Server.AllowedOrigins = []string{"*"}
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard origin in production should warn")
	}

	cfg.Server.Environment = "development"
	if cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard origin in development should not warn")
	}
}
