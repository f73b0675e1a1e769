package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"linkfolio/internal/config"
	"linkfolio/internal/domain"
	"linkfolio/internal/pkg/logger"
	"linkfolio/internal/pkg/urldetector"
	"linkfolio/internal/repository/postgres"
	"linkfolio/internal/repository/redis"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	_ "github.com/lib/pq"
)

func main() {
	var (
		file      = flag.String("file", "", "File with one URL per line")
		channelID = flag.String("channel", "", "Discord channel ID to import links from")
		limit     = flag.Int("limit", 0, "Maximum number of messages to fetch (0 = no limit)")
		batchSize = flag.Int("batch", 100, "Number of messages to fetch per Discord API call (max 100)")
		beforeID  = flag.String("before", "", "Fetch messages before this message ID")
		actor     = flag.String("actor", "seeder", "Actor recorded as the link creator")
		dryRun    = flag.Bool("dry-run", false, "Print what would be done without creating links")
	)

	// Parses the flags above together with -port and -log-level
	cfg := config.Load()

	if (*file == "") == (*channelID == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -file or -channel is required")
		flag.Usage()
		os.Exit(1)
	}
	if *batchSize < 1 || *batchSize > 100 {
		fmt.Fprintln(os.Stderr, "Error: -batch must be between 1 and 100")
		os.Exit(1)
	}

	// Setup logging
	log := logger.New(cfg.LogLevel)
	log.Info("Starting link seeder...",
		"file", *file,
		"channel_id", *channelID,
		"dry_run", *dryRun,
	)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

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

	seeder := &Seeder{
		links:       postgres.NewLinkRepository(db, log),
		queue:       redis.NewQueueRepository(redisClient, log),
		urlDetector: urldetector.New("discord.com", "discord.gg", "discordapp.com", "discordapp.net"),
		logger:      log,
		session:     domain.NewSession(domain.SessionSourceCLI, *actor),
		dryRun:      *dryRun,
		pageDelay:   100 * time.Millisecond,
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("Shutdown signal received, stopping seeder...")
		cancel()
	}()

	var stats *SeedingStats
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Error("Failed to open URL file", "error", err)
			os.Exit(1)
		}
		urls, errs := readURLFile(f)
		f.Close()
		for _, err := range errs {
			log.Warn("Skipping line", "error", err)
		}
		stats = seeder.SeedURLs(ctx, urls)
		stats.Errors += len(errs)
	} else {
		if cfg.DiscordToken == "" {
			log.Error("DISCORD_TOKEN is required to import from a channel")
			os.Exit(1)
		}
		discord, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			log.Error("Failed to create Discord session", "error", err)
			os.Exit(1)
		}
		if _, err := discord.User("@me"); err != nil {
			log.Error("Failed to authenticate with Discord", "error", err)
			os.Exit(1)
		}

		stats, err = seeder.SeedFromChannel(ctx, discord, *channelID, *batchSize, *limit, *beforeID)
		if err != nil {
			log.Error("Seeder failed", "error", err)
			os.Exit(1)
		}
	}

	log.Info("Seeding completed",
		"messages_processed", stats.MessagesProcessed,
		"urls_detected", stats.URLsDetected,
		"links_created", stats.LinksCreated,
		"links_skipped", stats.LinksSkipped,
		"jobs_queued", stats.JobsQueued,
		"errors", stats.Errors,
	)
}
