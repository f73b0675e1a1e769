package bot

import (
	"context"
	"fmt"
	"linkfolio/internal/config"
	"linkfolio/internal/domain"
	"linkfolio/internal/pkg/urldetector"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Hosts whose links are Discord plumbing, never portfolio entries
var discordHosts = []string{"discord.com", "discord.gg", "discordapp.com", "discordapp.net"}

// LinkStore is the part of link storage the bot uses
type LinkStore interface {
	Create(ctx context.Context, session domain.Session, url string) (*domain.PortfolioLink, error)
	List(ctx context.Context, cursor *time.Time, limit int) ([]*domain.PortfolioLink, error)
	Count(ctx context.Context) (int, error)
}

// JobQueue schedules preview jobs and reports queue counters
type JobQueue interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
	GetQueueStats(ctx context.Context, jobType string) (map[string]int64, error)
}

// Previewer resolves a preview record for a raw URL
type Previewer interface {
	Preview(ctx context.Context, raw string) (domain.PreviewRecord, error)
}

// discordAPI is the subset of *discordgo.Session the handlers call
type discordAPI interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// BotService handles Discord bot operations
type BotService struct {
	logger      *slog.Logger
	session     *discordgo.Session
	links       LinkStore
	queue       JobQueue
	previewer   Previewer
	urlDetector *urldetector.Detector

	// Only messages in this channel add links
	channelID      string
	previewTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new bot service
func New(
	cfg *config.Config,
	logger *slog.Logger,
	links LinkStore,
	queue JobQueue,
	previewer Previewer,
) (*BotService, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	s := newBotService(logger, links, queue, previewer, cfg.DiscordChannelID, cfg.Preview.RequestBudget())
	s.session = session
	s.registerHandlers()

	return s, nil
}

func newBotService(
	logger *slog.Logger,
	links LinkStore,
	queue JobQueue,
	previewer Previewer,
	channelID string,
	previewTimeout time.Duration,
) *BotService {
	ctx, cancel := context.WithCancel(context.Background())
	return &BotService{
		logger:         logger,
		links:          links,
		queue:          queue,
		previewer:      previewer,
		urlDetector:    urldetector.New(discordHosts...),
		channelID:      channelID,
		previewTimeout: previewTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start connects to Discord and blocks until Stop is called
func (s *BotService) Start() error {
	s.logger.Info("Starting Discord bot...")

	if err := s.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	s.logger.Info("Discord bot connected", "channel_id", s.channelID)

	<-s.ctx.Done()
	return nil
}

// Stop closes the gateway connection
func (s *BotService) Stop() error {
	s.cancel()

	if s.session != nil {
		s.logger.Info("Closing Discord connection...")
		if err := s.session.Close(); err != nil {
			s.logger.Error("Error closing Discord connection", "error", err)
			return err
		}
	}

	s.logger.Info("Discord bot stopped")
	return nil
}

func (s *BotService) registerHandlers() {
	s.session.AddHandler(s.onReady)
	s.session.AddHandler(s.onMessageCreate)
	s.session.AddHandler(s.onInteractionCreate)
}

// onReady is called when the bot successfully connects to Discord
func (s *BotService) onReady(session *discordgo.Session, ready *discordgo.Ready) {
	s.logger.Info("Bot is ready",
		"username", ready.User.Username,
		"guilds", len(ready.Guilds),
	)

	if err := s.registerCommands(session, ready.User.ID); err != nil {
		s.logger.Error("Failed to register slash commands", "error", err)
	}

	if err := session.UpdateWatchStatus(0, "the portfolio"); err != nil {
		s.logger.Error("Failed to set bot status", "error", err)
	}
}
