// Brahma - Shared Telepresence Relay for Animal-Telemetry Visualization
// Copyright 2026 XRSS
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/xrss/brahma

// Package main is the entry point for the Brahma relay server.
//
// Brahma keeps a set of co-present participants in sync while they explore a
// shared 3D visualization of animal telemetry. Each participant's headset and
// controller transforms stream in over a WebSocket channel; the relay fans
// the full roster back out at a fixed cadence, coordinates the single shared
// callout annotation, and appends a sampled CSV audit trail of every pose.
//
// # Application Architecture
//
// The server runs under a Suture v4 supervisor tree:
//
//	RootSupervisor ("brahma")
//	├── DataSupervisor ("data-layer")
//	│   └── Audit sampler (CSV telemetry log, 4 Hz)
//	├── MessagingSupervisor ("messaging-layer")
//	│   ├── WebSocket hub
//	│   └── Roster broadcaster (30 Hz)
//	└── APISupervisor ("api-layer")
//	    └── HTTP server (identity, roster, /ws, health, metrics)
//
// The audit log is load-bearing for the research deployments this serves; a
// writer that cannot be opened at startup is fatal rather than degraded.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xrss/brahma/internal/api"
	"github.com/xrss/brahma/internal/audit"
	"github.com/xrss/brahma/internal/callout"
	"github.com/xrss/brahma/internal/config"
	"github.com/xrss/brahma/internal/identity"
	"github.com/xrss/brahma/internal/logging"
	"github.com/xrss/brahma/internal/session"
	"github.com/xrss/brahma/internal/supervisor"
	"github.com/xrss/brahma/internal/supervisor/services"
	ws "github.com/xrss/brahma/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Brahma with supervisor tree")
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("tls", cfg.Server.TLSEnabled()).
		Dur("broadcast_interval", cfg.Session.BroadcastInterval).
		Dur("audit_interval", cfg.Session.AuditInterval).
		Str("audit_dir", cfg.Audit.Dir).
		Msg("Configuration loaded")

	// The audit trail is a hard requirement of the deployments this relay
	// serves. Fail fast if the CSV cannot be opened.
	auditWriter, err := audit.NewWriter(cfg.Audit.Dir, cfg.Audit.FilePrefix)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open audit log")
	}
	defer func() {
		if err := auditWriter.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit log")
		}
	}()
	logging.Info().Str("path", auditWriter.Path()).Msg("Audit log ready")

	// Shared state
	registry := session.NewRegistry()
	coordinator := callout.NewCoordinator()
	allocator := identity.NewAllocator(registry, cfg.Session.NamePrefix, cfg.Session.NameSuffixLength)

	hub := ws.NewHub()
	dispatcher := ws.NewDispatcher(registry, coordinator, hub)
	broadcaster := ws.NewBroadcaster(registry, hub, cfg.Session.BroadcastInterval)
	sampler := audit.NewSampler(auditWriter, registry, cfg.Session.AuditInterval)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSutureLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	handler := api.NewHandler(cfg, registry, allocator, hub, dispatcher)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Data layer
	tree.AddDataService(sampler)

	// Messaging layer
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(broadcaster)

	// API layer
	httpSvc := services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout)
	if cfg.Server.TLSEnabled() {
		httpSvc = httpSvc.WithTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
	}
	tree.AddAPIService(httpSvc)
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the error channel until the supervisor has fully stopped
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Relay stopped gracefully")
}
