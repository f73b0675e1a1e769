package main

import (
	"context"
	"database/sql"
	"fmt"
	"linkfolio/internal/config"
	"linkfolio/internal/http"
	"linkfolio/internal/http/handlers"
	"linkfolio/internal/http/middleware"
	"linkfolio/internal/pkg/logger"
	"linkfolio/internal/repository/postgres"
	"linkfolio/internal/repository/redis"
	"linkfolio/internal/service/api"
	"linkfolio/internal/service/preview"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate API-specific configuration
	if err := cfg.ValidateForAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.New(cfg.LogLevel)
	log.Info("Starting API service...")

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
	linkRepo := postgres.NewLinkRepository(db, log)
	queueRepo := redis.NewQueueRepository(redisClient, log)

	// Metrics registry shared by the pipeline and the HTTP layer
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

	previewer, err := preview.New(cfg.Preview, log, recorder)
	if err != nil {
		log.Error("Failed to create preview pipeline", "error", err)
		os.Exit(1)
	}

	router, err := http.NewRouter(http.Dependencies{
		Logger:         log,
		LinkRepo:       linkRepo,
		Queue:          queueRepo,
		Previewer:      previewer,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimiter:    middleware.NewRateLimiter(cfg.PreviewRateLimit, cfg.PreviewRateBurst, log),
		PreviewTimeout: cfg.Preview.RequestBudget(),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": linkRepo.Ping,
			"redis": func(ctx context.Context) error {
				return redis.HealthCheck(ctx, redisClient)
			},
		},
		Gatherer:   registry,
		Registerer: registry,
	})
	if err != nil {
		log.Error("Failed to create router", "error", err)
		os.Exit(1)
	}

	apiService := api.New(cfg, log, router.SetupRoutes())

	// Create a channel to track shutdown completion
	done := make(chan struct{})

	// Start API service in a goroutine
	go func() {
		defer close(done)
		if err := apiService.Start(); err != nil {
			log.Error("API service failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either shutdown signal or service completion
	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping API service...")
	case <-done:
		log.Info("API service completed")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiService.Stop(ctx); err != nil {
		log.Error("Error stopping API service", "error", err)
	}

	log.Info("API service shutdown complete")
}
