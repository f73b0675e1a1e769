package bot

import (
	"context"
	"errors"
	"linkfolio/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// Reaction added to a message whose links were stored
const addedReaction = "🔗"

// onMessageCreate handles new Discord messages
func (s *BotService) onMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	s.handleMessage(s.ctx, session, message)
}

func (s *BotService) handleMessage(ctx context.Context, api discordAPI, message *discordgo.MessageCreate) {
	if message.Author == nil || message.Author.Bot {
		return
	}
	if message.ChannelID != s.channelID {
		return
	}

	urls := s.urlDetector.DetectURLs(message.Content)
	if len(urls) == 0 {
		return
	}

	s.logger.Info("Detected URLs in admin channel",
		"message_id", message.ID,
		"author_id", message.Author.ID,
		"urls", urls,
	)

	session := domain.NewSession(domain.SessionSourceDiscord, message.Author.ID)

	added := 0
	for _, url := range urls {
		ok, err := s.addLink(ctx, session, url)
		if err != nil {
			s.logger.Error("Failed to add link",
				"error", err,
				"url", url,
				"message_id", message.ID,
			)
			continue
		}
		if ok {
			added++
		}
	}

	if added == 0 {
		return
	}

	s.logger.Info("Links added from Discord",
		"message_id", message.ID,
		"added", added,
	)

	if err := api.MessageReactionAdd(message.ChannelID, message.ID, addedReaction); err != nil {
		s.logger.Warn("Failed to add emoji reaction",
			"error", err,
			"message_id", message.ID,
		)
	}
}

// addLink stores url and queues its preview. Already registered URLs
// report false without an error.
func (s *BotService) addLink(ctx context.Context, session domain.Session, url string) (bool, error) {
	link, err := s.links.Create(ctx, session, url)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateURL) {
			s.logger.Info("URL already registered", "url", url)
			return false, nil
		}
		return false, err
	}

	jobID, err := s.queue.Enqueue(ctx, domain.JobTypeResolvePreview, domain.ResolvePreviewPayload{
		LinkID: link.ID.String(),
		URL:    link.URL,
	})
	if err != nil {
		// The link exists; an admin refresh can queue it later
		s.logger.Warn("Failed to queue preview job",
			"error", err,
			"link_id", link.ID,
		)
		return true, nil
	}

	s.logger.Info("Link created",
		"link_id", link.ID,
		"url", link.URL,
		"job_id", jobID,
		"created_by", session.ActorLabel(),
	)
	return true, nil
}
