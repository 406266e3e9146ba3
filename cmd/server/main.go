// Noteplane - Collaborative Spatial Canvas Synchronization Engine
// Copyright 2026 Noteplane Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/noteplane/noteplane

// Package main is the Noteplane reference store server.
//
// The server hosts collaborative canvas sessions: an HTTP bootstrap API
// issues participant identities, a WebSocket endpoint per session speaks
// the path-addressed store protocol, and the store itself is either
// in-memory or Badger-backed. All long-running components run under a
// suture supervision tree.
//
// Configuration is loaded via koanf with layered sources (highest wins):
// environment variables (NOTEPLANE_*), an optional YAML file
// (noteplane.yaml or NOTEPLANE_CONFIG), built-in defaults.
//
// Optional build tags:
//
//	go build -tags nats ./cmd/server   # cross-instance replication via NATS JetStream
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/noteplane/noteplane/internal/api"
	"github.com/noteplane/noteplane/internal/config"
	"github.com/noteplane/noteplane/internal/logging"
	"github.com/noteplane/noteplane/internal/replication"
	"github.com/noteplane/noteplane/internal/store"
	"github.com/noteplane/noteplane/internal/supervisor"
	"github.com/noteplane/noteplane/internal/supervisor/services"
	ws "github.com/noteplane/noteplane/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("backend", cfg.Store.Backend).
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("Starting Noteplane store server")

	// Store backend. Badger's internal GC loop stays off; the supervisor
	// runs GC as a data-layer service instead.
	var (
		provider       store.Provider
		badgerProvider *store.BadgerProvider
	)
	switch cfg.Store.Backend {
	case "badger":
		badgerProvider, err = store.OpenBadger(store.BadgerConfig{
			Path:       cfg.Store.Path,
			SyncWrites: true,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open Badger store")
		}
		provider = badgerProvider
	default:
		provider = store.NewMemoryProvider()
	}
	defer func() {
		if err := provider.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	// Optional replication. With the bridge in place, the API writes
	// through a provider that publishes every accepted write.
	bridge, err := replication.New(cfg.NATS, provider)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize replication")
	}
	serveProvider := provider
	if bridge != nil {
		serveProvider = bridge.Provider()
		defer func() {
			if err := bridge.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing replication bridge")
			}
		}()
	}

	hub := ws.NewHub()

	handler := api.NewHandler(serveProvider, hub, api.HandlerConfig{
		AllowedOrigins: cfg.Security.CORSOrigins,
		IngressRate:    rate.Limit(cfg.Server.IngressRate),
		IngressBurst:   cfg.Server.IngressBurst,
		Engine:         engineSettings(cfg.Engine),
	})

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled

	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Data layer: store maintenance.
	if badgerProvider != nil {
		tree.AddDataService(services.NewBadgerGCService(badgerProvider, cfg.Store.GCInterval))
	}
	// The sweeper writes through the serving provider so its deletes
	// fan out (and replicate) like any other change.
	tree.AddDataService(services.NewSweeperService(serveProvider, services.SweeperOptions{
		Interval:        cfg.Sweeper.Interval,
		CursorRetention: cfg.Sweeper.CursorRetention,
		LockLeaseTTL:    cfg.Engine.LockLeaseTTL,
		LockRetention:   cfg.Sweeper.LockRetention,
	}))

	// Messaging layer.
	tree.AddMessagingService(services.NewHubService(hub))
	if bridge != nil {
		tree.AddMessagingService(bridge)
	}

	// API layer.
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
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

	logging.Info().Msg("Server stopped gracefully")
}

// engineSettings maps the configured engine tunables onto the bootstrap
// payload block every client receives.
func engineSettings(e config.EngineConfig) api.EngineSettings {
	return api.EngineSettings{
		CursorIntervalMS:  e.CursorInterval.Milliseconds(),
		ContentDebounceMS: e.ContentDebounce.Milliseconds(),
		SettleWindowMS:    e.SettleWindow.Milliseconds(),
		LockLeaseTTLMS:    e.LockLeaseTTL.Milliseconds(),
		CursorLivenessMS:  e.CursorLiveness.Milliseconds(),
		NoteWidth:         e.NoteWidth,
		NoteHeight:        e.NoteHeight,
		PanThreshold:      e.PanThreshold,
		EraserRadius:      e.EraserRadius,
		StrokeWidth:       e.StrokeWidth,
		RegionWidth:       e.RegionWidth,
		ZoomMin:           e.ZoomMin,
		ZoomMax:           e.ZoomMax,
		SeedRegions:       e.SeedRegions,
	}
}
