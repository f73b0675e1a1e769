package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LinkRepository defines the interface for portfolio link storage
type LinkRepository interface {
	// GetByID retrieves a link by its UUID
	GetByID(ctx context.Context, id uuid.UUID) (*PortfolioLink, error)

	// List returns links newest first. A non-nil cursor returns only links
	// created strictly before it.
	List(ctx context.Context, cursor *time.Time, limit int) ([]*PortfolioLink, error)

	// Create inserts a new link on behalf of the session
	Create(ctx context.Context, session Session, url string) (*PortfolioLink, error)

	// Delete removes a link on behalf of the session
	Delete(ctx context.Context, session Session, id uuid.UUID) error

	// UpdatePreview stores a resolved preview snapshot
	UpdatePreview(ctx context.Context, id uuid.UUID, preview *PreviewRecord, status string) error

	// Count returns the number of stored links
	Count(ctx context.Context) (int, error)

	// Ping checks storage connectivity
	Ping(ctx context.Context) error
}

// QueueRepository defines the interface for job queue operations
type QueueRepository interface {
	// Enqueue adds a new job to the queue and returns its ID
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)

	// Dequeue retrieves the next job from the queue, nil when none is ready
	Dequeue(ctx context.Context, jobType string) (*QueueJob, error)

	// Complete marks a job as completed
	Complete(ctx context.Context, jobID string) error

	// Fail marks a job as failed with error details
	Fail(ctx context.Context, jobID string, errorMsg string) error

	// GetPendingCount returns the number of pending jobs
	GetPendingCount(ctx context.Context, jobType string) (int, error)

	// ProcessRetryJobs moves due retries back onto the queue
	ProcessRetryJobs(ctx context.Context, jobType string) error

	// GetQueueStats returns counters for a job type
	GetQueueStats(ctx context.Context, jobType string) (map[string]int64, error)
}

// QueueJob represents a job in the processing queue
type QueueJob struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	Status     string                 `json:"status"`
	RetryCount int                    `json:"retry_count"`
	CreatedAt  string                 `json:"created_at"`
	UpdatedAt  *string                `json:"updated_at"`
}

// Job types
const (
	JobTypeResolvePreview  = "resolve_preview"
	JobTypeNotifyLinkReady = "notify_link_ready"
)

// JobTypes lists every job type the worker consumes, in processing order
var JobTypes = []string{JobTypeResolvePreview, JobTypeNotifyLinkReady}

// Job statuses
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ResolvePreviewPayload is the payload of a resolve_preview job
type ResolvePreviewPayload struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}

// NotifyLinkReadyPayload is the payload of a notify_link_ready job
type NotifyLinkReadyPayload struct {
	LinkID string `json:"link_id"`
}
