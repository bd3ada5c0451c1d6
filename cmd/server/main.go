// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Command server runs the Nightshade game orchestrator: token catalog,
// scan pipeline, session scoring, video playback, and the GM gateway,
// all under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nightshade-games/orchestrator/internal/api"
	"github.com/nightshade-games/orchestrator/internal/auth"
	"github.com/nightshade-games/orchestrator/internal/broadcast"
	"github.com/nightshade-games/orchestrator/internal/config"
	"github.com/nightshade-games/orchestrator/internal/devices"
	"github.com/nightshade-games/orchestrator/internal/display"
	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/gateway"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/offline"
	"github.com/nightshade-games/orchestrator/internal/persistence"
	"github.com/nightshade-games/orchestrator/internal/pipeline"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/state"
	"github.com/nightshade-games/orchestrator/internal/supervisor"
	"github.com/nightshade-games/orchestrator/internal/tokens"
	"github.com/nightshade-games/orchestrator/internal/video"
	"github.com/nightshade-games/orchestrator/internal/vlc"
)

// logRingCapacity bounds the in-memory log tail served by
// GET /api/admin/logs.
const logRingCapacity = 2000

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("orchestrator exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ring := logging.NewRingBuffer(logRingCapacity)
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Ring:      ring,
	})
	logging.Info().Str("version", api.Version).Int("port", cfg.Server.Port).Msg("orchestrator starting")

	// Persistence first: everything downstream restores from it.
	store, err := persistence.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage backend %q: %w", cfg.Storage.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("close store")
		}
	}()

	catalog, err := tokens.New(cfg.Tokens.Path, store)
	if err != nil {
		return fmt.Errorf("load token catalog: %w", err)
	}

	authManager, err := auth.NewManager(cfg.Security)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("close event bus")
		}
	}()

	// Domain services.
	sessions := session.New(store, bus, catalog)
	registry := devices.New(bus, sessions.SetDeviceCounts)

	player := vlc.NewPort(cfg.VLC)
	videoCtl := video.New(player, bus)
	pipe := pipeline.New(catalog, sessions, videoCtl, store, bus)
	offlineQueue := offline.New(store, pipe, sessions, bus)
	displayCtl := display.New()
	projector := state.New(sessions, pipe, videoCtl, registry, player)

	// Socket and HTTP surfaces.
	hub := gateway.NewHub(gateway.Deps{
		Auth:      authManager,
		Sessions:  sessions,
		Pipeline:  pipe,
		Video:     videoCtl,
		Display:   displayCtl,
		Offline:   offlineQueue,
		Projector: projector,
		Registry:  registry,
	})
	fabric := broadcast.New(bus, hub)

	handler := api.NewHandler(authManager, catalog, sessions, pipe, offlineQueue, projector, registry, ring)
	router := api.NewRouter(cfg.Server, handler, hub.Handler(cfg.Server.CORSOrigins))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	// Supervision tree.
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())

	tree.AddMediaService(supervisor.Name("player-port", player))
	tree.AddMediaService(supervisor.Name("video-fsm", videoCtl))
	tree.AddMessagingService(supervisor.Name("gateway-hub", hub))
	tree.AddMessagingService(supervisor.Name("broadcast-fabric", fabric))
	if cfg.Tokens.Watch {
		tree.AddMessagingService(supervisor.Name("token-watcher", supervisor.RunnerFunc(catalog.Watch)))
	}
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A session restored from disk means scans buffered before the
	// restart can replay immediately.
	if sessions.CurrentSession() != nil && offlineQueue.Size() > 0 {
		go offlineQueue.Drain(ctx)
	}

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprint(svc.Service)).Msg("service did not stop in time")
		}
	}
	logging.Info().Msg("orchestrator stopped")
	return nil
}
