package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"keygate/internal/config"
	"keygate/internal/db"
	"keygate/internal/keygen"
	"keygate/internal/logger"
	"keygate/internal/notifier"
	"keygate/internal/scheduler"
	"keygate/internal/server"
	"keygate/internal/service"
	"keygate/internal/summarizer"
)

func main() {
	// Load .env before reading configuration; env vars override the file.
	_ = godotenv.Load()

	cfg, warning, err := config.LoadConfig("config.yaml")
	if err != nil {
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}

	dbService, err := db.NewService(cfg.Database)
	if err != nil {
		log.Error("Error initializing database", "error", err)
		os.Exit(1)
	}
	log.Info("Database initialized", "type", cfg.Database.Type)

	var n notifier.Notifier
	if cfg.Notifier.DiscordToken != "" && cfg.Notifier.DiscordChannelID != "" {
		n, err = notifier.NewDiscordNotifier(cfg.Notifier.DiscordToken, cfg.Notifier.DiscordChannelID, log)
		if err != nil {
			log.Error("Error creating discord notifier", "error", err)
			os.Exit(1)
		}
		log.Info("Discord notifier enabled", "channel", cfg.Notifier.DiscordChannelID)
	} else {
		n = notifier.NewLogNotifier(log)
	}

	sum, err := summarizer.NewGemini(context.Background(), cfg.Summarizer, log)
	if err != nil {
		log.Error("Error creating summarizer", "error", err)
		os.Exit(1)
	}

	keys := service.NewKeyService(dbService, keygen.New(), n, log, cfg.Keys.DefaultUsageLimit)

	sched := scheduler.New(dbService, log, cfg.Scheduler.DailyUsageReset)
	if err := sched.Start(); err != nil {
		log.Error("Error starting scheduler", "error", err)
		os.Exit(1)
	}
	log.Info("Scheduler started", "daily_usage_reset", cfg.Scheduler.DailyUsageReset)

	router := server.NewRouter(cfg, keys, sum, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched.Stop()
	if err := sum.Close(); err != nil {
		log.Warn("Error closing summarizer", "error", err)
	}
	if err := n.Close(); err != nil {
		log.Warn("Error closing notifier", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := dbService.Close(); err != nil {
		log.Warn("Error closing database", "error", err)
	}

	log.Info("Server exiting")
}
