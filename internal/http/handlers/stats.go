package handlers

import (
	"context"
	"linkfolio/internal/domain"
	"log/slog"
	"net/http"
	"time"
)

// QueueStatsReader reads per-job-type queue counters
type QueueStatsReader interface {
	GetQueueStats(ctx context.Context, jobType string) (map[string]int64, error)
}

type StatsHandler struct {
	logger   *slog.Logger
	linkRepo domain.LinkRepository
	queue    QueueStatsReader
}

// StatsResponse reports link and queue counters
type StatsResponse struct {
	Links     int                         `json:"links"`
	Queues    map[string]map[string]int64 `json:"queues"`
	Timestamp string                      `json:"timestamp"`
}

func NewStatsHandler(logger *slog.Logger, linkRepo domain.LinkRepository, queue QueueStatsReader) *StatsHandler {
	return &StatsHandler{
		logger:   logger,
		linkRepo: linkRepo,
		queue:    queue,
	}
}

// HandleQueueStats handles GET /api/v1/admin/queue
func (h *StatsHandler) HandleQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.linkRepo.Count(ctx)
	if err != nil {
		h.logger.Error("Failed to count links", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	queues := make(map[string]map[string]int64, len(domain.JobTypes))
	for _, jobType := range domain.JobTypes {
		stats, err := h.queue.GetQueueStats(ctx, jobType)
		if err != nil {
			h.logger.Error("Failed to get queue stats", "error", err, "job_type", jobType)
			writeError(w, h.logger, http.StatusServiceUnavailable, "Queue unavailable")
			return
		}
		queues[jobType] = stats
	}

	writeJSONResponse(w, h.logger, http.StatusOK, StatsResponse{
		Links:     count,
		Queues:    queues,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
