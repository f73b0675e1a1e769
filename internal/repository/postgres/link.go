package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const linkColumns = `id, url, created_at, created_by, preview, preview_status, preview_updated_at`

// uniqueViolation is the PostgreSQL error code for a unique constraint failure
const uniqueViolation = "23505"

// LinkRepository implements the domain.LinkRepository interface using PostgreSQL
type LinkRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLinkRepository creates a new PostgreSQL link repository
func NewLinkRepository(db *sql.DB, logger *slog.Logger) *LinkRepository {
	return &LinkRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *LinkRepository) scanLink(row rowScanner) (*domain.PortfolioLink, error) {
	link := &domain.PortfolioLink{}
	var createdBy sql.NullString
	var previewUpdatedAt sql.NullTime
	var previewBytes []byte // JSONB column

	if err := row.Scan(
		&link.ID,
		&link.URL,
		&link.CreatedAt,
		&createdBy,
		&previewBytes,
		&link.PreviewStatus,
		&previewUpdatedAt,
	); err != nil {
		return nil, err
	}

	if createdBy.Valid {
		link.CreatedBy = &createdBy.String
	}
	if previewUpdatedAt.Valid {
		link.PreviewUpdatedAt = &previewUpdatedAt.Time
	}

	if len(previewBytes) > 0 {
		var record domain.PreviewRecord
		if err := json.Unmarshal(previewBytes, &record); err != nil {
			r.logger.Warn("Failed to unmarshal link preview",
				"error", err,
				"link_id", link.ID,
			)
		} else {
			link.Preview = &record
		}
	}

	return link, nil
}

// GetByID retrieves a link by its UUID
func (r *LinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PortfolioLink, error) {
	query := `SELECT ` + linkColumns + ` FROM portfolio_links WHERE id = $1`

	link, err := r.scanLink(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Link not found", "link_id", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to query link",
			"error", err,
			"link_id", id,
		)
		return nil, fmt.Errorf("failed to query link: %w", err)
	}

	return link, nil
}

// List returns links newest first, optionally before a cursor
func (r *LinkRepository) List(ctx context.Context, cursor *time.Time, limit int) ([]*domain.PortfolioLink, error) {
	query := `SELECT ` + linkColumns + ` FROM portfolio_links`
	args := []any{}

	if cursor != nil {
		query += ` WHERE created_at < $1`
		args = append(args, *cursor)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list links", "error", err)
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := make([]*domain.PortfolioLink, 0, limit)
	for rows.Next() {
		link, err := r.scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}

	return links, nil
}

// Create inserts a new link in pending preview state
func (r *LinkRepository) Create(ctx context.Context, session domain.Session, url string) (*domain.PortfolioLink, error) {
	if err := session.Authorize(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO portfolio_links (url, created_by, preview_status)
		VALUES ($1, $2, $3)
		RETURNING ` + linkColumns

	link, err := r.scanLink(r.db.QueryRowContext(ctx, query, url, session.ActorLabel(), domain.PreviewStatusPending))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.logger.Debug("Link already registered", "url", url)
			return nil, domain.ErrDuplicateURL
		}
		r.logger.Error("Failed to create link",
			"error", err,
			"url", url,
		)
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	r.logger.Info("Link created successfully",
		"link_id", link.ID,
		"url", link.URL,
		"created_by", session.ActorLabel(),
	)

	return link, nil
}

// Delete removes a link by ID
func (r *LinkRepository) Delete(ctx context.Context, session domain.Session, id uuid.UUID) error {
	if err := session.Authorize(); err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_links WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete link",
			"error", err,
			"link_id", id,
		)
		return fmt.Errorf("failed to delete link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	r.logger.Info("Link deleted",
		"link_id", id,
		"deleted_by", session.ActorLabel(),
	)
	return nil
}

// UpdatePreview stores a preview snapshot and its status
func (r *LinkRepository) UpdatePreview(ctx context.Context, id uuid.UUID, preview *domain.PreviewRecord, status string) error {
	if !domain.IsValidPreviewStatus(status) {
		return fmt.Errorf("invalid preview status: %q", status)
	}

	var previewJSON interface{}
	if preview != nil {
		data, err := json.Marshal(preview)
		if err != nil {
			return fmt.Errorf("failed to marshal link preview: %w", err)
		}
		previewJSON = data
	}

	query := `
		UPDATE portfolio_links
		SET preview = $1, preview_status = $2, preview_updated_at = NOW()
		WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, previewJSON, status, id)
	if err != nil {
		r.logger.Error("Failed to update link preview",
			"error", err,
			"link_id", id,
			"status", status,
		)
		return fmt.Errorf("failed to update link preview: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected", "error", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		r.logger.Warn("No link found for preview update", "link_id", id)
		return domain.ErrNotFound
	}

	r.logger.Debug("Link preview updated",
		"link_id", id,
		"status", status,
	)

	return nil
}

// Count returns the number of stored links
func (r *LinkRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM portfolio_links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

// Ping checks database connectivity
func (r *LinkRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ClearAll deletes every link and returns how many were removed
func (r *LinkRepository) ClearAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_links`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear links: %w", err)
	}
	return result.RowsAffected()
}
