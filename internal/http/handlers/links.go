package handlers

import (
	"errors"
	"linkfolio/internal/domain"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPaginationLimit = 25
	MaxPaginationLimit     = 100
)

type LinksHandler struct {
	logger   *slog.Logger
	linkRepo domain.LinkRepository
}

// LinksResponse represents the paginated response for links
type LinksResponse struct {
	Links   []*LinkDto `json:"links"`
	HasMore bool       `json:"has_more"`
	Cursor  *string    `json:"cursor,omitempty"`
}

type LinkDto struct {
	ID               string                `json:"id"`
	URL              string                `json:"url"`
	CreatedAt        time.Time             `json:"created_at"`
	PreviewStatus    string                `json:"preview_status"`
	Preview          *domain.PreviewRecord `json:"preview,omitempty"`
	PreviewUpdatedAt *time.Time            `json:"preview_updated_at,omitempty"`
}

func NewLinksHandler(logger *slog.Logger, linkRepo domain.LinkRepository) *LinksHandler {
	return &LinksHandler{
		logger:   logger,
		linkRepo: linkRepo,
	}
}

func toLinkDto(link *domain.PortfolioLink) *LinkDto {
	return &LinkDto{
		ID:               link.ID.String(),
		URL:              link.URL,
		CreatedAt:        link.CreatedAt,
		PreviewStatus:    link.PreviewStatus,
		Preview:          link.Preview,
		PreviewUpdatedAt: link.PreviewUpdatedAt,
	}
}

// parseCursor parses a cursor string into a time.Time pointer
func parseCursor(cursorStr string) (*time.Time, error) {
	if cursorStr == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, cursorStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// buildLinksResponse creates a paginated response. links holds up to limit+1
// rows; the extra row only signals that another page exists.
func buildLinksResponse(links []*domain.PortfolioLink, limit int) *LinksResponse {
	hasMore := len(links) > limit
	if hasMore {
		links = links[:limit]
	}

	dtos := make([]*LinkDto, 0, len(links))
	for _, link := range links {
		dtos = append(dtos, toLinkDto(link))
	}

	response := &LinksResponse{
		Links:   dtos,
		HasMore: hasMore,
	}

	if hasMore && len(links) > 0 {
		cursor := links[len(links)-1].CreatedAt.UTC().Format(time.RFC3339Nano)
		response.Cursor = &cursor
	}

	return response
}

// ListLinks handles GET /api/v1/links
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cursor, err := parseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		h.logger.Warn("Invalid cursor format", "cursor", r.URL.Query().Get("cursor"), "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid cursor format")
		return
	}

	limit := DefaultPaginationLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= MaxPaginationLimit {
			limit = parsed
		}
	}

	// Request one more item than the limit to determine if there are more results
	links, err := h.linkRepo.List(ctx, cursor, limit+1)
	if err != nil {
		h.logger.Error("Failed to list links", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := buildLinksResponse(links, limit)
	h.logger.Debug("Listed links", "count", len(response.Links), "has_more", response.HasMore)
	writeJSONResponse(w, h.logger, http.StatusOK, response)
}

// GetLink handles GET /api/v1/links/{id}
func (h *LinksHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid link ID")
		return
	}

	link, err := h.linkRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Link not found")
			return
		}
		h.logger.Error("Failed to get link", "error", err, "link_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, toLinkDto(link))
}
