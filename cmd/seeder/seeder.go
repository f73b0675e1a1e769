package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"linkfolio/internal/domain"
	"linkfolio/internal/pkg/urldetector"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)
	angleBracketRegex = regexp.MustCompile(`<(https?://[^>]+)>`)
)

// LinkCreator stores new links
type LinkCreator interface {
	Create(ctx context.Context, session domain.Session, url string) (*domain.PortfolioLink, error)
}

// JobEnqueuer schedules preview jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

// messageFetcher is the part of *discordgo.Session used to read channel history
type messageFetcher interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// Seeder bulk-imports links and queues their previews
type Seeder struct {
	links       LinkCreator
	queue       JobEnqueuer
	urlDetector *urldetector.Detector
	logger      *slog.Logger
	session     domain.Session
	dryRun      bool

	// Pause between Discord history pages
	pageDelay time.Duration
}

// SeedingStats tracks statistics for the seeding process
type SeedingStats struct {
	MessagesProcessed int
	URLsDetected      int
	LinksCreated      int
	LinksSkipped      int
	JobsQueued        int
	Errors            int
}

// readURLFile returns one normalized URL per non-blank line. Lines starting
// with '#' are comments; bare domains get https.
func readURLFile(r io.Reader) ([]string, []error) {
	var urls []string
	var errs []error

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		normalized, err := urldetector.NormalizeURL(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		urls = append(urls, normalized)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return urls, errs
}

// SeedURLs creates a link for every URL and queues its preview
func (s *Seeder) SeedURLs(ctx context.Context, urls []string) *SeedingStats {
	stats := &SeedingStats{URLsDetected: len(urls)}
	for _, url := range urls {
		if ctx.Err() != nil {
			s.logger.Warn("Context cancelled, stopping import")
			return stats
		}
		if err := s.processURL(ctx, url, stats); err != nil {
			s.logger.Error("Failed to process URL", "error", err, "url", url)
			stats.Errors++
		}
	}
	return stats
}

// SeedFromChannel imports the links found in a channel's history
func (s *Seeder) SeedFromChannel(ctx context.Context, discord messageFetcher, channelID string, batchSize, limit int, beforeID string) (*SeedingStats, error) {
	messages, err := s.fetchMessages(ctx, discord, channelID, batchSize, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	s.logger.Info("Fetched messages from Discord", "total_messages", len(messages))

	stats := &SeedingStats{}
	for _, message := range messages {
		if ctx.Err() != nil {
			s.logger.Warn("Context cancelled, stopping message processing")
			return stats, nil
		}

		stats.MessagesProcessed++

		if message.Author != nil && message.Author.Bot {
			continue
		}

		urls := s.urlDetector.DetectURLs(cleanMarkdownLinks(message.Content))
		stats.URLsDetected += len(urls)

		for _, url := range urls {
			if err := s.processURL(ctx, url, stats); err != nil {
				s.logger.Error("Failed to process URL",
					"error", err,
					"url", url,
					"message_id", message.ID,
				)
				stats.Errors++
			}
		}
	}

	return stats, nil
}

// fetchMessages pages backwards through channel history, newest first
func (s *Seeder) fetchMessages(ctx context.Context, discord messageFetcher, channelID string, batchSize, limit int, beforeID string) ([]*discordgo.Message, error) {
	var allMessages []*discordgo.Message

	for {
		if err := ctx.Err(); err != nil {
			return allMessages, err
		}

		messages, err := discord.ChannelMessages(channelID, batchSize, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		if len(messages) == 0 {
			break
		}

		allMessages = append(allMessages, messages...)
		s.logger.Info("Fetched message batch",
			"batch_size", len(messages),
			"total_so_far", len(allMessages),
		)

		if limit > 0 && len(allMessages) >= limit {
			allMessages = allMessages[:limit]
			break
		}

		beforeID = messages[len(messages)-1].ID

		if s.pageDelay > 0 {
			time.Sleep(s.pageDelay)
		}
	}

	return allMessages, nil
}

// processURL creates one link and queues its preview job
func (s *Seeder) processURL(ctx context.Context, url string, stats *SeedingStats) error {
	if s.dryRun {
		s.logger.Info("[DRY RUN] Would create link", "url", url)
		stats.LinksCreated++
		stats.JobsQueued++
		return nil
	}

	link, err := s.links.Create(ctx, s.session, url)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateURL) {
			s.logger.Debug("Link already exists, skipping", "url", url)
			stats.LinksSkipped++
			return nil
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	s.logger.Info("Created link", "link_id", link.ID, "url", link.URL)
	stats.LinksCreated++

	if _, err := s.queue.Enqueue(ctx, domain.JobTypeResolvePreview, domain.ResolvePreviewPayload{
		LinkID: link.ID.String(),
		URL:    link.URL,
	}); err != nil {
		return fmt.Errorf("failed to queue preview job: %w", err)
	}
	stats.JobsQueued++

	return nil
}

// cleanMarkdownLinks unwraps Discord formatting around links:
// [text](url) becomes url, <url> becomes url, and zero-width characters go.
func cleanMarkdownLinks(content string) string {
	cleaned := markdownLinkRegex.ReplaceAllString(content, "$2")
	cleaned = angleBracketRegex.ReplaceAllString(cleaned, "$1")

	for _, invisible := range []string{"\u200B", "\u200C", "\u200D", "\uFEFF"} {
		cleaned = strings.ReplaceAll(cleaned, invisible, "")
	}

	return strings.TrimSpace(cleaned)
}
