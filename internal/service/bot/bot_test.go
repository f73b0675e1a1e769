package bot

import (
	"context"
	"errors"
	"io"
	"linkfolio/internal/domain"
	"linkfolio/internal/service/preview"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminChannel = "chan-admin"

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeLinks struct {
	created  []*domain.PortfolioLink
	sessions []domain.Session
	existing map[string]bool
	listed   []*domain.PortfolioLink
	err      error
}

func (f *fakeLinks) Create(_ context.Context, session domain.Session, url string) (*domain.PortfolioLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.existing[url] {
		return nil, domain.ErrDuplicateURL
	}
	link := &domain.PortfolioLink{ID: uuid.New(), URL: url, PreviewStatus: domain.PreviewStatusPending}
	f.created = append(f.created, link)
	f.sessions = append(f.sessions, session)
	return link, nil
}

func (f *fakeLinks) List(_ context.Context, _ *time.Time, limit int) ([]*domain.PortfolioLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.listed) > limit {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

func (f *fakeLinks) Count(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.listed), nil
}

type fakeQueue struct {
	jobs []domain.ResolvePreviewPayload
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, _ string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, payload.(domain.ResolvePreviewPayload))
	return "job-1", nil
}

func (q *fakeQueue) GetQueueStats(_ context.Context, _ string) (map[string]int64, error) {
	return map[string]int64{"current_pending": 2, "completed": 7}, nil
}

type fakePreviewer struct {
	record domain.PreviewRecord
	err    error
}

func (p *fakePreviewer) Preview(_ context.Context, raw string) (domain.PreviewRecord, error) {
	if p.err != nil {
		return domain.PreviewRecord{}, p.err
	}
	rec := p.record
	rec.URL = raw
	return rec, nil
}

type fakeDiscord struct {
	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit
	reactions []string
}

func (d *fakeDiscord) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	d.responses = append(d.responses, resp)
	return nil
}

func (d *fakeDiscord) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	d.edits = append(d.edits, edit)
	return &discordgo.Message{}, nil
}

func (d *fakeDiscord) MessageReactionAdd(_, _, emojiID string, _ ...discordgo.RequestOption) error {
	d.reactions = append(d.reactions, emojiID)
	return nil
}

func newTestBot(links *fakeLinks, queue *fakeQueue, previewer *fakePreviewer) *BotService {
	return newBotService(createTestLogger(), links, queue, previewer, adminChannel, time.Second)
}

func message(channelID, content string, bot bool) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{ID: "user-42", Bot: bot},
	}}
}

func command(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: "user-42"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
		},
	}}
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("adds detected links with a discord session", func(t *testing.T) {
		links, queue, api := &fakeLinks{}, &fakeQueue{}, &fakeDiscord{}
		b := newTestBot(links, queue, &fakePreviewer{})

		b.handleMessage(ctx, api, message(adminChannel,
			"new work: https://Example.com/case-study?utm_source=x and https://blog.example.org/post.", false))

		require.Len(t, links.created, 2)
		assert.Equal(t, "https://example.com/case-study", links.created[0].URL)
		assert.Equal(t, "https://blog.example.org/post", links.created[1].URL)
		assert.Equal(t, "discord:user-42", links.sessions[0].ActorLabel())

		require.Len(t, queue.jobs, 2)
		assert.Equal(t, links.created[0].ID.String(), queue.jobs[0].LinkID)
		assert.Equal(t, []string{addedReaction}, api.reactions)
	})

	t.Run("ignores other channels and bots", func(t *testing.T) {
		links, api := &fakeLinks{}, &fakeDiscord{}
		b := newTestBot(links, &fakeQueue{}, &fakePreviewer{})

		b.handleMessage(ctx, api, message("chan-general", "https://example.com", false))
		b.handleMessage(ctx, api, message(adminChannel, "https://example.com", true))

		assert.Empty(t, links.created)
		assert.Empty(t, api.reactions)
	})

	t.Run("skips discord links and duplicates", func(t *testing.T) {
		links := &fakeLinks{existing: map[string]bool{"https://example.com": true}}
		api := &fakeDiscord{}
		b := newTestBot(links, &fakeQueue{}, &fakePreviewer{})

		b.handleMessage(ctx, api, message(adminChannel,
			"https://example.com https://discord.com/channels/1/2 https://cdn.discordapp.com/a.png", false))

		assert.Empty(t, links.created)
		assert.Empty(t, api.reactions)
	})

	t.Run("queue failure keeps the link", func(t *testing.T) {
		links, api := &fakeLinks{}, &fakeDiscord{}
		b := newTestBot(links, &fakeQueue{err: errors.New("redis down")}, &fakePreviewer{})

		b.handleMessage(ctx, api, message(adminChannel, "https://example.com", false))

		assert.Len(t, links.created, 1)
		assert.Len(t, api.reactions, 1)
	})

	t.Run("storage failure adds nothing", func(t *testing.T) {
		links, api := &fakeLinks{err: errors.New("db down")}, &fakeDiscord{}
		b := newTestBot(links, &fakeQueue{}, &fakePreviewer{})

		b.handleMessage(ctx, api, message(adminChannel, "https://example.com", false))
		assert.Empty(t, api.reactions)
	})
}

func TestPreviewCommand(t *testing.T) {
	ctx := context.Background()
	urlOption := &discordgo.ApplicationCommandInteractionDataOption{
		Name:  "url",
		Type:  discordgo.ApplicationCommandOptionString,
		Value: " https://example.com ",
	}

	t.Run("defers then edits with an embed", func(t *testing.T) {
		image := "https://images.weserv.nl/?url=example.com/og.png"
		api := &fakeDiscord{}
		b := newTestBot(&fakeLinks{}, &fakeQueue{}, &fakePreviewer{record: domain.PreviewRecord{
			Title:       "Example",
			Description: "Desc",
			Image:       &image,
			Selected:    domain.ImageCandidate{StrategyKind: domain.StrategyMetaImageProxied},
		}})

		b.handleInteraction(ctx, api, command("preview", urlOption))

		require.Len(t, api.responses, 1)
		assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, api.responses[0].Type)

		require.Len(t, api.edits, 1)
		require.NotNil(t, api.edits[0].Embeds)
		embed := (*api.edits[0].Embeds)[0]
		assert.Equal(t, "Example", embed.Title)
		assert.Equal(t, "https://example.com", embed.URL)
		require.NotNil(t, embed.Image)
		assert.Equal(t, image, embed.Image.URL)
		assert.Equal(t, "strategy: meta_image_proxied", embed.Footer.Text)
	})

	t.Run("invalid URL gets a message", func(t *testing.T) {
		api := &fakeDiscord{}
		b := newTestBot(&fakeLinks{}, &fakeQueue{}, &fakePreviewer{err: preview.ErrInvalidURL})

		b.handleInteraction(ctx, api, command("preview", urlOption))

		require.Len(t, api.edits, 1)
		require.NotNil(t, api.edits[0].Content)
		assert.Contains(t, *api.edits[0].Content, "not a valid http(s) URL")
		assert.Nil(t, api.edits[0].Embeds)
	})
}

func TestLinksCommand(t *testing.T) {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var listed []*domain.PortfolioLink
	for i := 0; i < 12; i++ {
		listed = append(listed, &domain.PortfolioLink{
			ID:            uuid.New(),
			URL:           "https://example.com",
			CreatedAt:     created,
			PreviewStatus: domain.PreviewStatusReady,
			Preview:       &domain.PreviewRecord{Title: "Example"},
		})
	}

	tests := []struct {
		name       string
		options    []*discordgo.ApplicationCommandInteractionDataOption
		wantFields int
	}{
		{"default count", nil, defaultLinksCount},
		{"explicit count", []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
		}, 3},
		{"count is capped", []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "count", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(50)},
		}, maxLinksCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeDiscord{}
			b := newTestBot(&fakeLinks{listed: listed}, &fakeQueue{}, &fakePreviewer{})

			b.handleInteraction(context.Background(), api, command("links", tt.options...))

			require.Len(t, api.responses, 1)
			embed := api.responses[0].Data.Embeds[0]
			assert.Len(t, embed.Fields, tt.wantFields)
			assert.Equal(t, "Example", embed.Fields[0].Name)
			assert.Contains(t, embed.Fields[0].Value, "status: ready")
		})
	}

	t.Run("empty listing", func(t *testing.T) {
		embed := linksEmbed(nil)
		assert.Empty(t, embed.Fields)
		assert.NotEmpty(t, embed.Description)
	})
}

func TestStatsCommand(t *testing.T) {
	api := &fakeDiscord{}
	b := newTestBot(&fakeLinks{listed: make([]*domain.PortfolioLink, 4)}, &fakeQueue{}, &fakePreviewer{})

	b.handleInteraction(context.Background(), api, command("stats"))

	require.Len(t, api.responses, 1)
	fields := api.responses[0].Data.Embeds[0].Fields
	require.Len(t, fields, 1+len(domain.JobTypes))
	assert.Equal(t, "4", fields[0].Value)
	assert.Contains(t, fields[1].Value, "pending 2")
	assert.Contains(t, fields[1].Value, "completed 7")
}

func TestUnknownCommand(t *testing.T) {
	api := &fakeDiscord{}
	b := newTestBot(&fakeLinks{}, &fakeQueue{}, &fakePreviewer{})

	b.handleInteraction(context.Background(), api, command("dance"))

	require.Len(t, api.responses, 1)
	assert.Equal(t, "Unknown command", api.responses[0].Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, api.responses[0].Data.Flags)
}

func TestPreviewEmbed_SkipsDataURIs(t *testing.T) {
	image := preview.Placeholder("example.com")
	embed := previewEmbed(domain.PreviewRecord{Title: "example.com", Image: &image})
	assert.Nil(t, embed.Image)
}

func TestInteractionUserID(t *testing.T) {
	assert.Equal(t, "user-42", interactionUserID(command("links")))

	dm := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{User: &discordgo.User{ID: "dm-user"}}}
	assert.Equal(t, "dm-user", interactionUserID(dm))

	assert.Empty(t, interactionUserID(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}))
}
