package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/procureflow/assistant/internal/adk"
	"github.com/procureflow/assistant/internal/api"
	"github.com/procureflow/assistant/internal/auth"
	"github.com/procureflow/assistant/internal/config"
	"github.com/procureflow/assistant/internal/conversation"
	"github.com/procureflow/assistant/internal/server"
	"github.com/procureflow/assistant/internal/session"
	"github.com/procureflow/assistant/internal/storage"
	"github.com/procureflow/assistant/internal/storage/memory"
	"github.com/procureflow/assistant/internal/storage/redis"
	"github.com/procureflow/assistant/internal/storage/sqlite"
	"github.com/procureflow/assistant/internal/telemetry"
)

const requestTimeout = 60 * time.Second

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer("procureflow-assistant", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(os.Getenv("ASSIST_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, closeStore, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	client := adk.NewClient(cfg.ADK.Endpoint, cfg.ADK.AppName)
	controller := conversation.New(session.NewResolver(store, client), client, logger,
		conversation.WithDefaultLanguage(cfg.Chat.DefaultLanguage))

	authManager := auth.NewManager(store, logger)
	if err := authManager.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load auth state: %v", err)
	}

	srv := server.New(cfg.Server.Port, requestTimeout, logger)
	api.NewHandler(authManager, controller, logger).Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("assistant started",
		slog.Int("port", cfg.Server.Port),
		slog.String("adk_endpoint", cfg.ADK.Endpoint),
		slog.String("storage", cfg.Storage.Type),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("assistant shutdown complete")
}

func openStorage(cfg *config.Config) (storage.KV, func(), error) {
	switch cfg.Storage.Type {
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "redis":
		store, err := redis.New(cfg.Storage.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
