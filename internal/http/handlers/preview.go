package handlers

import (
	"context"
	"errors"
	"linkfolio/internal/domain"
	"linkfolio/internal/http/middleware"
	"linkfolio/internal/service/preview"
	"log/slog"
	"net/http"
	"time"
)

// Previewer resolves a preview for a raw target URL
type Previewer interface {
	Preview(ctx context.Context, raw string) (domain.PreviewRecord, error)
}

type PreviewHandler struct {
	logger    *slog.Logger
	previewer Previewer
	timeout   time.Duration
}

// NewPreviewHandler creates the preview handler. A positive timeout bounds
// each request; the cascade answers with its placeholder once it expires.
func NewPreviewHandler(logger *slog.Logger, previewer Previewer, timeout time.Duration) *PreviewHandler {
	return &PreviewHandler{
		logger:    logger,
		previewer: previewer,
		timeout:   timeout,
	}
}

// GetPreview handles GET /preview?url=
func (h *PreviewHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	record, err := h.previewer.Preview(ctx, raw)
	switch {
	case errors.Is(err, preview.ErrURLRequired):
		writeError(w, h.logger, http.StatusBadRequest, preview.ErrURLRequired.Error())
	case err != nil:
		h.logger.Warn("Preview request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"url", raw,
			"error", err,
		)
		writeJSONResponse(w, h.logger, http.StatusInternalServerError, domain.FailedPreview(raw))
	default:
		writeJSONResponse(w, h.logger, http.StatusOK, record)
	}
}
