package worker

import (
	"context"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// embedColor matches the placeholder image fill
const embedColor = 0x4F46E5

// embedSender is the part of *discordgo.Session the notifier uses
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts ready previews to a Discord channel
type DiscordNotifier struct {
	sender    embedSender
	channelID string
	logger    *slog.Logger
}

// NewDiscordNotifier creates a notifier posting to channelID
func NewDiscordNotifier(sender embedSender, channelID string, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: channelID,
		logger:    logger,
	}
}

// NotifyLinkReady sends one embed describing the link's preview
func (n *DiscordNotifier) NotifyLinkReady(ctx context.Context, link *domain.PortfolioLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	embed := buildLinkEmbed(link)
	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}

	n.logger.Debug("Posted link embed", "link_id", link.ID, "channel_id", n.channelID)
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// buildLinkEmbed renders a preview as a Discord embed. Data URI images
// cannot be shown by Discord and are left out.
func buildLinkEmbed(link *domain.PortfolioLink) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		URL:   link.URL,
		Title: link.URL,
		Color: embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Preview ready",
		},
	}

	if link.Preview == nil {
		return embed
	}

	embed.Title = truncate(link.Preview.Title, 256)
	embed.Description = truncate(link.Preview.Description, 4096)

	if img := link.Preview.Image; img != nil && (strings.HasPrefix(*img, "https://") || strings.HasPrefix(*img, "http://")) {
		embed.Image = &discordgo.MessageEmbedImage{URL: *img}
	}
	if strategy := link.Preview.Selected.StrategyKind; strategy != domain.StrategyNone {
		embed.Footer.Text = "Preview ready · " + strategy.String()
	}

	return embed
}
