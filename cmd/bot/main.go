package main

import (
	"context"
	"database/sql"
	"fmt"
	"linkfolio/internal/config"
	"linkfolio/internal/pkg/logger"
	"linkfolio/internal/repository/postgres"
	"linkfolio/internal/repository/redis"
	"linkfolio/internal/service/bot"
	"linkfolio/internal/service/preview"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate bot-specific configuration
	if err := cfg.ValidateForBot(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.New(cfg.LogLevel)
	log.Info("Starting Discord bot service...")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

	// Run database migrations
	if err := postgres.RunMigrations(db, log); err != nil {
		log.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Test Redis connection
	if err := redis.HealthCheck(context.Background(), redisClient); err != nil {
		log.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}

	// Create repositories
	queueRepo := redis.NewQueueRepository(redisClient, log)
	linkRepo := postgres.NewLinkRepository(db, log)

	// /preview runs the pipeline in-process
	previewer, err := preview.New(cfg.Preview, log, preview.NopRecorder{})
	if err != nil {
		log.Error("Failed to create preview pipeline", "error", err)
		os.Exit(1)
	}

	// Create bot service
	botService, err := bot.New(cfg, log, linkRepo, queueRepo, previewer)
	if err != nil {
		log.Error("Failed to create bot service", "error", err)
		os.Exit(1)
	}

	// Create a channel to track shutdown completion
	done := make(chan struct{})

	// Start bot service in a goroutine
	go func() {
		defer close(done)
		if err := botService.Start(); err != nil {
			log.Error("Bot service failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either shutdown signal or service completion
	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping bot service...")
	case <-done:
		log.Info("Bot service completed")
	}

	if err := botService.Stop(); err != nil {
		log.Error("Error stopping bot service", "error", err)
	}

	log.Info("Bot service shutdown complete")
}
