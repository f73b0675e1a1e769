package bot

import (
	"context"
	"errors"
	"fmt"
	"linkfolio/internal/domain"
	"linkfolio/internal/service/preview"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	defaultLinksCount = 5
	maxLinksCount     = 10

	embedColor = 0x4F46E5
)

var minLinksCount = 1.0

// Command definitions
var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "preview",
		Description: "Show the link preview for a URL",
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "url",
				Description: "Page to preview",
				Required:    true,
			},
		},
	},
	{
		Name:        "links",
		Description: "List the most recent portfolio links",
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many links to show",
				MinValue:    &minLinksCount,
				MaxValue:    maxLinksCount,
			},
		},
	},
	{
		Name:        "stats",
		Description: "Show link and preview queue statistics",
		Type:        discordgo.ChatApplicationCommand,
	},
}

// registerCommands registers slash commands with Discord
func (s *BotService) registerCommands(session *discordgo.Session, appID string) error {
	s.logger.Info("Registering slash commands...")

	// Global commands take up to an hour to propagate
	if _, err := session.ApplicationCommandBulkOverwrite(appID, "", commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	s.logger.Info("Slash commands registered", "count", len(commands))
	return nil
}

// onInteractionCreate handles slash command interactions
func (s *BotService) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	s.handleInteraction(s.ctx, session, interaction)
}

func (s *BotService) handleInteraction(ctx context.Context, api discordAPI, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	command := interaction.ApplicationCommandData()
	s.logger.Debug("Received slash command",
		"command", command.Name,
		"user_id", interactionUserID(interaction),
		"guild_id", interaction.GuildID,
	)

	if command.Name == "preview" {
		s.handlePreviewCommand(ctx, api, interaction)
		return
	}

	var response *discordgo.InteractionResponse
	switch command.Name {
	case "links":
		response = s.handleLinksCommand(ctx, interaction)
	case "stats":
		response = s.handleStatsCommand(ctx)
	default:
		response = messageResponse("Unknown command")
	}

	if err := api.InteractionRespond(interaction.Interaction, response); err != nil {
		s.logger.Error("Failed to respond to interaction", "error", err)
	}
}

// handlePreviewCommand defers the reply, since resolving a preview can
// outlast Discord's initial response window.
func (s *BotService) handlePreviewCommand(ctx context.Context, api discordAPI, interaction *discordgo.InteractionCreate) {
	raw := optionString(interaction.ApplicationCommandData().Options, "url")

	deferred := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if err := api.InteractionRespond(interaction.Interaction, deferred); err != nil {
		s.logger.Error("Failed to defer interaction", "error", err)
		return
	}

	previewCtx, cancel := context.WithTimeout(ctx, s.previewTimeout)
	defer cancel()

	edit := &discordgo.WebhookEdit{}
	record, err := s.previewer.Preview(previewCtx, raw)
	switch {
	case errors.Is(err, preview.ErrURLRequired), errors.Is(err, preview.ErrInvalidURL):
		content := fmt.Sprintf("❌ `%s` is not a valid http(s) URL", raw)
		edit.Content = &content
	case err != nil:
		s.logger.Error("Preview command failed", "error", err, "url", raw)
		content := "❌ Could not build a preview for that URL"
		edit.Content = &content
	default:
		embeds := []*discordgo.MessageEmbed{previewEmbed(record)}
		edit.Embeds = &embeds
	}

	if _, err := api.InteractionResponseEdit(interaction.Interaction, edit); err != nil {
		s.logger.Error("Failed to edit interaction response", "error", err)
	}
}

// handleLinksCommand handles the /links command
func (s *BotService) handleLinksCommand(ctx context.Context, interaction *discordgo.InteractionCreate) *discordgo.InteractionResponse {
	count := defaultLinksCount
	for _, option := range interaction.ApplicationCommandData().Options {
		if option.Name == "count" && option.Type == discordgo.ApplicationCommandOptionInteger {
			count = int(option.IntValue())
		}
	}
	count = max(1, min(count, maxLinksCount))

	links, err := s.links.List(ctx, nil, count)
	if err != nil {
		s.logger.Error("Failed to list links", "error", err)
		return messageResponse("❌ Could not load links")
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{linksEmbed(links)},
		},
	}
}

// handleStatsCommand handles the /stats command
func (s *BotService) handleStatsCommand(ctx context.Context) *discordgo.InteractionResponse {
	total, err := s.links.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count links", "error", err)
		return messageResponse("❌ Could not load statistics")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Links", Value: fmt.Sprintf("%d", total), Inline: true},
	}
	for _, jobType := range domain.JobTypes {
		stats, err := s.queue.GetQueueStats(ctx, jobType)
		if err != nil {
			s.logger.Warn("Failed to load queue stats", "error", err, "job_type", jobType)
			continue
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: jobType,
			Value: fmt.Sprintf("pending %d · retrying %d · dead %d · completed %d",
				stats["current_pending"], stats["current_retrying"], stats["current_dead"], stats["completed"]),
		})
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:  "📊 Portfolio statistics",
				Color:  embedColor,
				Fields: fields,
			}},
		},
	}
}

func messageResponse(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, option := range options {
		if option.Name == name && option.Type == discordgo.ApplicationCommandOptionString {
			return strings.TrimSpace(option.StringValue())
		}
	}
	return ""
}

// interactionUserID returns the invoking user in guilds and DMs alike
func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func isRemoteImage(image *string) bool {
	return image != nil && (strings.HasPrefix(*image, "https://") || strings.HasPrefix(*image, "http://"))
}

func previewEmbed(record domain.PreviewRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		URL:         record.URL,
		Title:       record.Title,
		Description: record.Description,
		Color:       embedColor,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "strategy: " + record.Selected.StrategyKind.String(),
		},
	}
	if isRemoteImage(record.Image) {
		embed.Image = &discordgo.MessageEmbedImage{URL: *record.Image}
	}
	return embed
}

func linksEmbed(links []*domain.PortfolioLink) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🔗 Recent links",
		Color: embedColor,
	}
	if len(links) == 0 {
		embed.Description = "No links yet. Post a URL in the admin channel to add one."
		return embed
	}

	for _, link := range links {
		title := link.URL
		if link.Preview != nil && link.Preview.Title != "" {
			title = link.Preview.Title
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  title,
			Value: fmt.Sprintf("%s\nstatus: %s · added <t:%d:R>", link.URL, link.PreviewStatus, link.CreatedAt.Unix()),
		})
	}
	return embed
}
