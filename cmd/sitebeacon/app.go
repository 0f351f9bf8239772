package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"SiteBeacon/internal/analytics"
	"SiteBeacon/internal/chat"
	"SiteBeacon/internal/chatstore"
	"SiteBeacon/internal/clock"
	"SiteBeacon/internal/completion"
	"SiteBeacon/internal/storage"
	"SiteBeacon/internal/telemetry"
)

// app holds the wired collaborators shared by the subcommands.
type app struct {
	logger  *slog.Logger
	kv      *storage.SQLiteStore
	chats   *chatstore.Store
	service *chat.Service
	beacon  *analytics.BeaconClient
	tracker *analytics.Tracker
	cleanup func()
}

func newApp() (*app, error) {
	logger, err := telemetry.InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, telemetryCleanup, err := telemetry.InitTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	kv, err := storage.OpenSQLite(cfg.StoragePath, logger)
	if err != nil {
		telemetryCleanup()
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	clk := clock.Real()
	chats := chatstore.New(kv, clk, logger)
	completer := completion.NewClient(cfg.CompletionURL, &http.Client{Timeout: cfg.CompletionTimeout}, logger, tracer, meter)
	service := chat.NewService(chats, completer, logger, cfg.CompletionTimeout, cfg.ReplyCacheTTL)
	service.OnChatCreated(func(c chatstore.Chat) {
		logger.Info("chat created", "chat_id", c.ID)
	})

	beacon := analytics.NewBeaconClient(cfg.BeaconURL, nil, logger, tracer, meter)
	sessions := analytics.NewSessionManager(kv, clk, logger, cfg.IdleTimeout)
	tracker := analytics.NewTracker(sessions, beacon, clk, logger)

	return &app{
		logger:  logger,
		kv:      kv,
		chats:   chats,
		service: service,
		beacon:  beacon,
		tracker: tracker,
		cleanup: func() {
			beacon.Flush()
			if err := kv.Close(); err != nil {
				logger.Error("failed to close local store", "error", err)
			}
			telemetryCleanup()
		},
	}, nil
}

func (a *app) Close() {
	a.cleanup()
}
