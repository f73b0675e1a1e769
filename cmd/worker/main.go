package main

import (
	"context"
	"database/sql"
	"fmt"
	"linkfolio/internal/config"
	"linkfolio/internal/pkg/logger"
	"linkfolio/internal/repository/postgres"
	"linkfolio/internal/repository/redis"
	"linkfolio/internal/service/preview"
	"linkfolio/internal/service/worker"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate worker-specific configuration
	if err := cfg.ValidateForWorker(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.New(cfg.LogLevel)
	log.Info("Starting worker service...")

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

	// Create repositories
	queueRepo := redis.NewQueueRepository(redisClient, log)
	linkRepo := postgres.NewLinkRepository(db, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorder, err := preview.NewPrometheusRecorder(registry)
	if err != nil {
		log.Error("Failed to register preview metrics", "error", err)
		os.Exit(1)
	}

	metrics, err := worker.NewMetrics(registry)
	if err != nil {
		log.Error("Failed to register worker metrics", "error", err)
		os.Exit(1)
	}

	previewer, err := preview.New(cfg.Preview, log, recorder)
	if err != nil {
		log.Error("Failed to create preview pipeline", "error", err)
		os.Exit(1)
	}

	// Discord notifications are optional
	var notifier worker.Notifier
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		discordSession, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			log.Warn("Failed to create Discord session for notifications", "error", err)
		} else {
			notifier = worker.NewDiscordNotifier(discordSession, cfg.DiscordChannelID, log)
			log.Info("Discord notifications enabled", "channel_id", cfg.DiscordChannelID)
		}
	}

	processor := worker.NewJobProcessor(log, linkRepo, previewer, queueRepo, notifier)
	workerService := worker.New(log, queueRepo, processor, metrics, cfg.WorkerPollInterval)

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	worker.StartMetricsServer(metricsCtx, log, cfg.WorkerMetricsPort, worker.NewMetricsHandler(registry, workerService))

	// Create a channel to track shutdown completion
	done := make(chan struct{})

	// Start worker service in a goroutine
	go func() {
		defer close(done)
		if err := workerService.Start(); err != nil {
			log.Error("Worker service failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either shutdown signal or service completion
	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping worker service...")
	case <-done:
		log.Info("Worker service completed")
	}

	if err := workerService.Stop(); err != nil {
		log.Error("Error stopping worker service", "error", err)
	}

	// Let the in-flight job finish
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn("Timed out waiting for in-flight job")
	}

	log.Info("Worker service shutdown complete")
}
