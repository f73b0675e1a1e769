package config

import (
	"errors"
	"flag"
	"fmt"
	"linkfolio/internal/service/preview"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port             string
	DatabaseURL      string
	RedisURL         string
	DiscordToken     string
	DiscordChannelID string
	AdminAPIKey      string
	LogLevel         string

	// Per-client limit on GET /preview
	PreviewRateLimit float64
	PreviewRateBurst int

	// Worker polling and its metrics listener
	WorkerPollInterval time.Duration
	WorkerMetricsPort  string

	Preview preview.Config
}

func Load() *Config {
	config := loadFromEnv(os.Getenv)

	// Required environment variables (for database/redis services)
	config.DatabaseURL = mustGetEnv("DATABASE_URL")
	config.RedisURL = mustGetEnv("REDIS_URL")

	// Command line flags override environment
	flag.StringVar(&config.Port, "port", config.Port, "Server port")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level")
	flag.Parse()

	return config
}

// loadFromEnv reads every optional setting through getenv.
// Malformed values fall back to their defaults with a warning.
func loadFromEnv(getenv func(string) string) *Config {
	env := envReader{getenv: getenv}

	config := &Config{
		Port:             env.string("PORT", "8080"),
		LogLevel:         env.string("LOG_LEVEL", "info"),
		DatabaseURL:      env.string("DATABASE_URL", ""),
		RedisURL:         env.string("REDIS_URL", ""),
		DiscordToken:     env.string("DISCORD_TOKEN", ""),
		DiscordChannelID: env.string("DISCORD_CHANNEL_ID", ""),
		AdminAPIKey:      env.string("ADMIN_API_KEY", ""),
		PreviewRateLimit: env.float("PREVIEW_RATE_LIMIT", 2),
		PreviewRateBurst: env.int("PREVIEW_RATE_BURST", 5),

		WorkerPollInterval: env.duration("WORKER_POLL_INTERVAL", 5*time.Second),
		WorkerMetricsPort:  env.string("WORKER_METRICS_PORT", "9091"),
	}

	p := preview.DefaultConfig()
	p.FetchTimeout = env.duration("PREVIEW_FETCH_TIMEOUT", p.FetchTimeout)
	p.ValidateTimeout = env.duration("PREVIEW_VALIDATE_TIMEOUT", p.ValidateTimeout)
	p.BrowserTimeout = env.duration("PREVIEW_BROWSER_TIMEOUT", p.BrowserTimeout)
	p.UserAgent = env.string("PREVIEW_USER_AGENT", p.UserAgent)
	p.ProxyTemplates = env.list("PREVIEW_PROXY_TEMPLATES", p.ProxyTemplates)
	p.ScreenshotTemplates = env.list("PREVIEW_SCREENSHOT_TEMPLATES", p.ScreenshotTemplates)
	p.ThumbnailWSKey = env.string("THUMBNAIL_WS_KEY", "")
	p.DenyPrivateIPs = env.bool("PREVIEW_DENY_PRIVATE_IPS", false)
	p.BrowserScreenshots = env.bool("PREVIEW_BROWSER_SCREENSHOTS", false)
	if raw := env.string("PREVIEW_CASCADE_ORDER", ""); raw != "" {
		order, err := preview.ParseCascadeOrder(raw)
		if err != nil {
			log.Printf("Ignoring PREVIEW_CASCADE_ORDER: %v", err)
		} else {
			p.Order = order
		}
	}
	config.Preview = p

	return config
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("Environment variable %s is required", key)
	}
	return value
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) string(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e envReader) int(key string, defaultValue int) int {
	raw := e.string(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func (e envReader) float(key string, defaultValue float64) float64 {
	raw := e.string(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func (e envReader) bool(key string, defaultValue bool) bool {
	raw := e.string(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func (e envReader) duration(key string, defaultValue time.Duration) time.Duration {
	raw := e.string(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

// list splits a comma separated value; blank entries are dropped.
func (e envReader) list(key string, defaultValue []string) []string {
	raw := e.string(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateForBot ensures all required fields for bot service are present
func (c *Config) ValidateForBot() error {
	if c.DiscordToken == "" {
		return errors.New("environment variable DISCORD_TOKEN is required for bot service")
	}
	if c.DiscordChannelID == "" {
		return errors.New("environment variable DISCORD_CHANNEL_ID is required for bot service")
	}
	return c.Preview.Validate()
}

// ValidateForWorker ensures all required fields for worker service are present
func (c *Config) ValidateForWorker() error {
	// Discord notifications are optional for the worker
	if c.WorkerPollInterval <= 0 {
		return fmt.Errorf("worker poll interval must be positive, got %s", c.WorkerPollInterval)
	}
	return c.Preview.Validate()
}

// ValidateForAPI ensures all required fields for API service are present
func (c *Config) ValidateForAPI() error {
	var errs []error
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.PreviewRateLimit <= 0 || c.PreviewRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("preview rate limit must be positive, got %v/%d", c.PreviewRateLimit, c.PreviewRateBurst))
	}
	if err := c.Preview.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
