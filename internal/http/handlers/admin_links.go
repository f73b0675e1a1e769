package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"linkfolio/internal/domain"
	"linkfolio/internal/http/middleware"
	"linkfolio/internal/pkg/urldetector"
	"linkfolio/internal/service/preview"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// JobEnqueuer schedules background jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
}

// AdminLinksHandler handles admin operations for portfolio links
type AdminLinksHandler struct {
	linkRepo domain.LinkRepository
	queue    JobEnqueuer
	logger   *slog.Logger
}

// NewAdminLinksHandler creates a new admin links handler
func NewAdminLinksHandler(linkRepo domain.LinkRepository, queue JobEnqueuer, logger *slog.Logger) *AdminLinksHandler {
	return &AdminLinksHandler{
		linkRepo: linkRepo,
		queue:    queue,
		logger:   logger,
	}
}

// CreateLinkRequest represents the request body for creating a link
type CreateLinkRequest struct {
	URL string `json:"url"`
}

// RefreshResponse is returned when a preview refresh was queued
type RefreshResponse struct {
	LinkID string `json:"link_id"`
	JobID  string `json:"job_id"`
}

func (h *AdminLinksHandler) enqueueResolve(ctx context.Context, link *domain.PortfolioLink) (string, error) {
	return h.queue.Enqueue(ctx, domain.JobTypeResolvePreview, domain.ResolvePreviewPayload{
		LinkID: link.ID.String(),
		URL:    link.URL,
	})
}

// CreateLink handles POST /api/v1/admin/links
func (h *AdminLinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := middleware.SessionFromContext(ctx)

	var req CreateLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := preview.ParseTarget(req.URL); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	normalized, err := urldetector.NormalizeURL(req.URL)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	link, err := h.linkRepo.Create(ctx, session, normalized)
	switch {
	case errors.Is(err, domain.ErrDuplicateURL):
		writeError(w, h.logger, http.StatusConflict, "URL already registered")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	case err != nil:
		h.logger.Error("Failed to create link", "error", err, "url", normalized)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create link")
		return
	}

	// The link stays pending; a later refresh can re-queue it
	if _, err := h.enqueueResolve(ctx, link); err != nil {
		h.logger.Warn("Failed to enqueue preview resolution", "error", err, "link_id", link.ID)
	}

	h.logger.Info("Link created via admin API",
		"request_id", middleware.RequestIDFromContext(ctx),
		"link_id", link.ID,
		"url", link.URL,
		"actor", session.ActorLabel(),
	)

	writeJSONResponse(w, h.logger, http.StatusCreated, toLinkDto(link))
}

// DeleteLink handles DELETE /api/v1/admin/links/{id}
func (h *AdminLinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid link ID")
		return
	}

	err = h.linkRepo.Delete(ctx, middleware.SessionFromContext(ctx), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Link not found")
		return
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	case err != nil:
		h.logger.Error("Failed to delete link", "error", err, "link_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete link")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshLink handles POST /api/v1/admin/links/{id}/refresh
func (h *AdminLinksHandler) RefreshLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid link ID")
		return
	}

	link, err := h.linkRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Link not found")
			return
		}
		h.logger.Error("Failed to get link for refresh", "error", err, "link_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Keep the old snapshot visible while the new one resolves
	if err := h.linkRepo.UpdatePreview(ctx, id, link.Preview, domain.PreviewStatusPending); err != nil {
		h.logger.Error("Failed to mark link pending", "error", err, "link_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	jobID, err := h.enqueueResolve(ctx, link)
	if err != nil {
		h.logger.Error("Failed to enqueue preview refresh", "error", err, "link_id", id)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Queue unavailable")
		return
	}

	h.logger.Info("Preview refresh queued", "link_id", id, "job_id", jobID)
	writeJSONResponse(w, h.logger, http.StatusAccepted, RefreshResponse{
		LinkID: id.String(),
		JobID:  jobID,
	})
}
