package worker

import (
	"context"
	"errors"
	"io"
	"linkfolio/internal/domain"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type previewUpdate struct {
	preview *domain.PreviewRecord
	status  string
}

// linkStore is an in-memory domain.LinkRepository keyed by ID
type linkStore struct {
	mu      sync.Mutex
	links   map[uuid.UUID]*domain.PortfolioLink
	updates []previewUpdate
	getErr  error
}

func newLinkStore() *linkStore {
	return &linkStore{links: make(map[uuid.UUID]*domain.PortfolioLink)}
}

func (s *linkStore) add(url string) *domain.PortfolioLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	link := &domain.PortfolioLink{
		ID:            uuid.New(),
		URL:           url,
		CreatedAt:     time.Now(),
		PreviewStatus: domain.PreviewStatusPending,
	}
	s.links[link.ID] = link
	return link
}

func (s *linkStore) GetByID(_ context.Context, id uuid.UUID) (*domain.PortfolioLink, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *link
	return &copied, nil
}

func (s *linkStore) List(context.Context, *time.Time, int) ([]*domain.PortfolioLink, error) {
	return nil, errors.New("not implemented")
}

func (s *linkStore) Create(context.Context, domain.Session, string) (*domain.PortfolioLink, error) {
	return nil, errors.New("not implemented")
}

func (s *linkStore) Delete(context.Context, domain.Session, uuid.UUID) error {
	return errors.New("not implemented")
}

func (s *linkStore) UpdatePreview(_ context.Context, id uuid.UUID, preview *domain.PreviewRecord, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	link.Preview = preview
	link.PreviewStatus = status
	link.PreviewUpdatedAt = &now
	s.updates = append(s.updates, previewUpdate{preview: preview, status: status})
	return nil
}

func (s *linkStore) Count(context.Context) (int, error) {
	return len(s.links), nil
}

func (s *linkStore) Ping(context.Context) error {
	return nil
}

// stubPreviewer returns a fixed record or error and counts calls
type stubPreviewer struct {
	record domain.PreviewRecord
	err    error
	calls  []string
}

func (p *stubPreviewer) Preview(_ context.Context, raw string) (domain.PreviewRecord, error) {
	p.calls = append(p.calls, raw)
	if p.err != nil {
		return domain.PreviewRecord{}, p.err
	}
	rec := p.record
	rec.URL = raw
	return rec, nil
}

type enqueuedJob struct {
	jobType string
	payload interface{}
}

type recordingEnqueuer struct {
	jobs []enqueuedJob
	err  error
}

func (q *recordingEnqueuer) Enqueue(_ context.Context, jobType string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, enqueuedJob{jobType: jobType, payload: payload})
	return uuid.NewString(), nil
}

type recordingNotifier struct {
	notified []*domain.PortfolioLink
	err      error
}

func (n *recordingNotifier) NotifyLinkReady(_ context.Context, link *domain.PortfolioLink) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, link)
	return nil
}

type recordingSender struct {
	channelID string
	embeds    []*discordgo.MessageEmbed
	err       error
}

func (s *recordingSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.channelID = channelID
	s.embeds = append(s.embeds, embed)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func strPtr(s string) *string {
	return &s
}
