package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roster-engine/internal/cache"
	"github.com/roster-engine/internal/config"
	"github.com/roster-engine/internal/feed"
	"github.com/roster-engine/internal/handler"
	"github.com/roster-engine/internal/postgres"
	"github.com/roster-engine/internal/repo"
	"github.com/roster-engine/internal/service"
	"github.com/roster-engine/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis cache
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	rosterCache, err := cache.New(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rosterCache.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	db, err := postgres.Connect(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := db.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize repositories and reporting service
	players := repo.NewPlayerRepo(db.Players(), rosterCache, cfg.Cache, logger)
	entries := repo.NewEntryRepo(db.RosterEntries(), rosterCache, cfg.Cache, cfg.Rebuild, logger)
	rosterService := service.NewRosterService(players, entries, &cfg.Roster, logger)

	// Initialize order feed consumer
	var feedConsumer *feed.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing order feed consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		feedConsumer, err = feed.NewConsumer(&cfg.Kafka, entries, logger)
		if err != nil {
			logger.Warn("failed to create feed consumer, continuing without feed", "error", err)
		} else {
			if err := feedConsumer.Start(); err != nil {
				logger.Warn("failed to start feed consumer, continuing without feed", "error", err)
				feedConsumer = nil
			} else {
				logger.Info("order feed consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(players, entries, rosterService, wsHub, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop feed consumer
	if feedConsumer != nil {
		if err := feedConsumer.Stop(); err != nil {
			logger.Error("failed to stop feed consumer", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
