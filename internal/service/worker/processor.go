package worker

import (
	"context"
	"errors"
	"fmt"
	"linkfolio/internal/domain"
	"linkfolio/internal/service/preview"
	"log/slog"

	"github.com/google/uuid"
)

// errPreviewDegraded marks a resolution whose page fetch failed. The job is
// retried by the queue; the degraded record is stored meanwhile.
var errPreviewDegraded = errors.New("preview degraded: target page could not be fetched")

// Previewer resolves a preview record for a raw URL
type Previewer interface {
	Preview(ctx context.Context, raw string) (domain.PreviewRecord, error)
}

// Notifier announces links whose preview became ready
type Notifier interface {
	NotifyLinkReady(ctx context.Context, link *domain.PortfolioLink) error
}

// JobEnqueuer schedules follow-up jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

// JobProcessor handles different types of background jobs
type JobProcessor struct {
	logger    *slog.Logger
	linkRepo  domain.LinkRepository
	previewer Previewer
	queue     JobEnqueuer
	notifier  Notifier
}

// NewJobProcessor creates a new job processor. notifier may be nil.
func NewJobProcessor(
	logger *slog.Logger,
	linkRepo domain.LinkRepository,
	previewer Previewer,
	queue JobEnqueuer,
	notifier Notifier,
) *JobProcessor {
	return &JobProcessor{
		logger:    logger,
		linkRepo:  linkRepo,
		previewer: previewer,
		queue:     queue,
		notifier:  notifier,
	}
}

// Process dispatches a job by type
func (p *JobProcessor) Process(ctx context.Context, job *domain.QueueJob, logger *slog.Logger) error {
	switch job.Type {
	case domain.JobTypeResolvePreview:
		return p.ProcessResolvePreview(ctx, job.Payload, logger)
	case domain.JobTypeNotifyLinkReady:
		return p.ProcessNotification(ctx, job.Payload, logger)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func linkIDFromPayload(payload map[string]interface{}) (uuid.UUID, error) {
	linkIDStr, ok := payload["link_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("missing or invalid link_id in payload")
	}
	linkID, err := uuid.Parse(linkIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid link_id format: %w", err)
	}
	return linkID, nil
}

// ProcessResolvePreview runs the preview pipeline for a stored link and
// saves the resulting snapshot.
func (p *JobProcessor) ProcessResolvePreview(ctx context.Context, payload map[string]interface{}, logger *slog.Logger) error {
	linkID, err := linkIDFromPayload(payload)
	if err != nil {
		return err
	}

	// The stored URL wins over the payload copy
	link, err := p.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("Link deleted before preview resolution, skipping", "link_id", linkID)
			return nil
		}
		return fmt.Errorf("failed to get link: %w", err)
	}

	logger.Info("Resolving preview", "link_id", linkID, "url", link.URL)

	record, err := p.previewer.Preview(ctx, link.URL)
	if err != nil {
		if errors.Is(err, preview.ErrInvalidURL) || errors.Is(err, preview.ErrURLRequired) {
			// Retrying cannot fix a bad URL
			failed := domain.FailedPreview(link.URL)
			if err := p.linkRepo.UpdatePreview(ctx, linkID, &failed, domain.PreviewStatusFailed); err != nil {
				return fmt.Errorf("failed to store failed preview: %w", err)
			}
			logger.Warn("Stored link has an invalid URL", "link_id", linkID, "error", err)
			return nil
		}
		return fmt.Errorf("failed to resolve preview: %w", err)
	}

	status := domain.PreviewStatusReady
	snapshot := &record
	if record.Degraded {
		status = domain.PreviewStatusFailed
		// An unreachable target must not replace the last good snapshot
		if link.Preview != nil {
			snapshot = link.Preview
		}
	}

	if err := p.linkRepo.UpdatePreview(ctx, linkID, snapshot, status); err != nil {
		return fmt.Errorf("failed to store preview: %w", err)
	}

	if record.Degraded {
		return errPreviewDegraded
	}

	logger.Info("Preview stored",
		"link_id", linkID,
		"strategy", record.Selected.StrategyKind.String(),
		"template", record.Selected.Template,
	)

	if _, err := p.queue.Enqueue(ctx, domain.JobTypeNotifyLinkReady, domain.NotifyLinkReadyPayload{
		LinkID: linkID.String(),
	}); err != nil {
		logger.Warn("Failed to enqueue ready notification", "error", err, "link_id", linkID)
	}

	return nil
}

// ProcessNotification announces a link whose preview is ready
func (p *JobProcessor) ProcessNotification(ctx context.Context, payload map[string]interface{}, logger *slog.Logger) error {
	if p.notifier == nil {
		logger.Debug("No notifier configured, skipping notification")
		return nil
	}

	linkID, err := linkIDFromPayload(payload)
	if err != nil {
		return err
	}

	link, err := p.linkRepo.GetByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info("Link deleted before notification, skipping", "link_id", linkID)
			return nil
		}
		return fmt.Errorf("failed to get link: %w", err)
	}

	if link.PreviewStatus != domain.PreviewStatusReady || link.Preview == nil {
		logger.Info("Preview no longer ready, skipping notification",
			"link_id", linkID,
			"status", link.PreviewStatus,
		)
		return nil
	}

	if err := p.notifier.NotifyLinkReady(ctx, link); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	logger.Info("Ready notification sent", "link_id", linkID)
	return nil
}
