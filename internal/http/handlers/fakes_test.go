package handlers

import (
	"context"
	"errors"
	"io"
	"linkfolio/internal/domain"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memoryLinkRepo is an in-memory domain.LinkRepository
type memoryLinkRepo struct {
	mu      sync.Mutex
	links   map[uuid.UUID]*domain.PortfolioLink
	failing error
	now     time.Time
}

func newMemoryLinkRepo() *memoryLinkRepo {
	return &memoryLinkRepo{
		links: make(map[uuid.UUID]*domain.PortfolioLink),
		now:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryLinkRepo) add(url string) *domain.PortfolioLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Minute)
	link := &domain.PortfolioLink{
		ID:            uuid.New(),
		URL:           url,
		CreatedAt:     m.now,
		PreviewStatus: domain.PreviewStatusPending,
	}
	m.links[link.ID] = link
	return link
}

func (m *memoryLinkRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PortfolioLink, error) {
	if m.failing != nil {
		return nil, m.failing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (m *memoryLinkRepo) List(_ context.Context, cursor *time.Time, limit int) ([]*domain.PortfolioLink, error) {
	if m.failing != nil {
		return nil, m.failing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PortfolioLink
	for _, link := range m.links {
		if cursor == nil || link.CreatedAt.Before(*cursor) {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryLinkRepo) Create(_ context.Context, session domain.Session, url string) (*domain.PortfolioLink, error) {
	if err := session.Authorize(); err != nil {
		return nil, err
	}
	if m.failing != nil {
		return nil, m.failing
	}
	m.mu.Lock()
	for _, link := range m.links {
		if link.URL == url {
			m.mu.Unlock()
			return nil, domain.ErrDuplicateURL
		}
	}
	m.mu.Unlock()
	link := m.add(url)
	label := session.ActorLabel()
	link.CreatedBy = &label
	return link, nil
}

func (m *memoryLinkRepo) Delete(_ context.Context, session domain.Session, id uuid.UUID) error {
	if err := session.Authorize(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.links, id)
	return nil
}

func (m *memoryLinkRepo) UpdatePreview(_ context.Context, id uuid.UUID, preview *domain.PreviewRecord, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	link.Preview = preview
	link.PreviewStatus = status
	return nil
}

func (m *memoryLinkRepo) Count(context.Context) (int, error) {
	if m.failing != nil {
		return 0, m.failing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links), nil
}

func (m *memoryLinkRepo) Ping(context.Context) error { return m.failing }

type enqueuedJob struct {
	jobType string
	payload interface{}
}

// recordingQueue records Enqueue calls and serves canned stats
type recordingQueue struct {
	mu      sync.Mutex
	jobs    []enqueuedJob
	failing error
}

func (q *recordingQueue) Enqueue(_ context.Context, jobType string, payload interface{}) (string, error) {
	if q.failing != nil {
		return "", q.failing
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueuedJob{jobType: jobType, payload: payload})
	return "job-" + jobType, nil
}

func (q *recordingQueue) GetQueueStats(_ context.Context, jobType string) (map[string]int64, error) {
	if q.failing != nil {
		return nil, q.failing
	}
	return map[string]int64{"current_pending": int64(len(q.jobs))}, nil
}

var errStorage = errors.New("storage offline")
