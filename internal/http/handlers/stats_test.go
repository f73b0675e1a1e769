package handlers

import (
	"context"
	"encoding/json"
	"linkfolio/internal/domain"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsHandler_HandleQueueStats(t *testing.T) {
	repo := newMemoryLinkRepo()
	repo.add("https://a.test")
	repo.add("https://b.test")
	queue := &recordingQueue{}
	_, _ = queue.Enqueue(context.Background(), domain.JobTypeResolvePreview, nil)

	h := NewStatsHandler(createTestLogger(), repo, queue)
	rec := httptest.NewRecorder()
	h.HandleQueueStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Links)
	for _, jobType := range domain.JobTypes {
		assert.Equal(t, int64(1), resp.Queues[jobType]["current_pending"])
	}
	assert.NotEmpty(t, resp.Timestamp)
}

func TestStatsHandler_Errors(t *testing.T) {
	repo := newMemoryLinkRepo()
	h := NewStatsHandler(createTestLogger(), repo, &recordingQueue{failing: errStorage})

	rec := httptest.NewRecorder()
	h.HandleQueueStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	repo.failing = errStorage
	rec = httptest.NewRecorder()
	h.HandleQueueStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/queue", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errStorage }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{"all healthy", map[string]HealthCheck{"database": ok, "redis": ok}, http.StatusOK, "healthy"},
		{"database down", map[string]HealthCheck{"database": down, "redis": ok}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(createTestLogger(), tt.checks)
			rec := httptest.NewRecorder()
			h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
			for name := range tt.checks {
				assert.Contains(t, resp.Checks, name)
			}
		})
	}
}
