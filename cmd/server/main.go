// Roomcast - Real-time Chat Room Fanout Server
// Copyright 2026 The Roomcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// supervisorSlack is added to the drain grace period to form suture's
// per-service stop timeout.
const supervisorSlack = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
}

func run(cfg *config.Config) error {
	start := time.Now()
	metrics.SetAppInfo(version)

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Str("ws_path", cfg.Server.WSPath).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Str("environment", cfg.Server.Environment).
		Bool("production", cfg.IsProduction()).
		Msg("Starting Roomcast")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("Wildcard origin configured in production: any site may open connections to this server")
	}

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLoggerForComponent("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownGrace + supervisorSlack,
	})
	if err != nil {
		return err
	}
	c.register(tree, cfg.Server.ShutdownGrace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trackUptime(ctx, start)
	watchLogLevel()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, draining")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		stop()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	rooms, members := c.registry.Stats()
	logging.Info().
		Int("rooms", rooms).
		Int("members", members).
		Dur("uptime", time.Since(start)).
		Msg("Roomcast stopped")

	if len(unstopped) > 0 {
		return fmt.Errorf("%d services failed to stop within timeout", len(unstopped))
	}
	return nil
}

// trackUptime refreshes the uptime gauge until ctx is canceled.
func trackUptime(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateUptime(start)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// watchLogLevel reloads the config file on change and applies a new log
// level. Other settings take effect on restart.
func watchLogLevel() {
	path := config.FilePath()
	if path == "" {
		return
	}

	err := config.WatchConfigFile(path, func() {
		next, err := config.LoadWithKoanf()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config file change")
			return
		}
		before := logging.GetLevel()
		logging.SetLevelString(next.Logging.Level)
		if after := logging.GetLevel(); after != before {
			logging.Info().Stringer("from", before).Stringer("to", after).Msg("Log level changed")
		}
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
		return
	}
	logging.Debug().Str("path", path).Msg("Watching config file for log level changes")
}
