package http

import (
	"context"
	"io"
	"linkfolio/internal/domain"
	"linkfolio/internal/http/handlers"
	"linkfolio/internal/http/middleware"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubLinkRepo struct {
	created []string
}

func (s *stubLinkRepo) GetByID(context.Context, uuid.UUID) (*domain.PortfolioLink, error) {
	return nil, domain.ErrNotFound
}
func (s *stubLinkRepo) List(context.Context, *time.Time, int) ([]*domain.PortfolioLink, error) {
	return nil, nil
}
func (s *stubLinkRepo) Create(_ context.Context, session domain.Session, url string) (*domain.PortfolioLink, error) {
	if err := session.Authorize(); err != nil {
		return nil, err
	}
	s.created = append(s.created, url)
	return &domain.PortfolioLink{ID: uuid.New(), URL: url, PreviewStatus: domain.PreviewStatusPending}, nil
}
func (s *stubLinkRepo) Delete(context.Context, domain.Session, uuid.UUID) error { return nil }
func (s *stubLinkRepo) UpdatePreview(context.Context, uuid.UUID, *domain.PreviewRecord, string) error {
	return nil
}
func (s *stubLinkRepo) Count(context.Context) (int, error) { return len(s.created), nil }
func (s *stubLinkRepo) Ping(context.Context) error         { return nil }

type stubQueue struct{}

func (stubQueue) Enqueue(context.Context, string, interface{}) (string, error) { return "job-1", nil }
func (stubQueue) Dequeue(context.Context, string) (*domain.QueueJob, error)    { return nil, nil }
func (stubQueue) Complete(context.Context, string) error                       { return nil }
func (stubQueue) Fail(context.Context, string, string) error                   { return nil }
func (stubQueue) GetPendingCount(context.Context, string) (int, error)         { return 0, nil }
func (stubQueue) ProcessRetryJobs(context.Context, string) error               { return nil }
func (stubQueue) GetQueueStats(context.Context, string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

type stubPreviewer struct{}

func (stubPreviewer) Preview(_ context.Context, raw string) (domain.PreviewRecord, error) {
	return domain.PreviewRecord{Title: "t", Description: "d", URL: raw}, nil
}

func newTestServer(t *testing.T, adminKey string) (*httptest.Server, *stubLinkRepo) {
	t.Helper()
	repo := &stubLinkRepo{}
	reg := prometheus.NewRegistry()

	router, err := NewRouter(Dependencies{
		Logger:      createTestLogger(),
		LinkRepo:    repo,
		Queue:       stubQueue{},
		Previewer:   stubPreviewer{},
		AdminAPIKey: adminKey,
		RateLimiter: middleware.NewRateLimiter(0.01, 2, createTestLogger()),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": repo.Ping,
		},
		Gatherer:   reg,
		Registerer: reg,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv, repo
}

func TestRouter_Routes(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	tests := []struct {
		method     string
		path       string
		auth       string
		wantStatus int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/preview?url=https://example.com", "", http.StatusOK},
		{http.MethodGet, "/preview", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/links", "", http.StatusOK},
		{http.MethodGet, "/api/v1/links/" + uuid.NewString(), "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/admin/queue", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/admin/queue", "Bearer secret", http.StatusOK},
		{http.MethodPost, "/api/v1/links", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRouter_AdminCreateUsesSession(t *testing.T) {
	srv, repo := newTestServer(t, "secret")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/admin/links", strings.NewReader(`{"url":"https://example.com/a"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"https://example.com/a"}, repo.created)
}

func TestRouter_PreviewRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, "")

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/preview?url=https://example.com")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// Other routes are not limited
	resp, err := http.Get(srv.URL + "/api/v1/links")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_MetricsExposeHTTPRequests(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="GET /health",status="200"} 1`)
}

type deadlinePreviewer struct {
	hasDeadline bool
}

func (d *deadlinePreviewer) Preview(ctx context.Context, raw string) (domain.PreviewRecord, error) {
	_, d.hasDeadline = ctx.Deadline()
	return domain.PreviewRecord{Title: "t", URL: raw}, nil
}

func TestRouter_PreviewTimeoutReachesPipeline(t *testing.T) {
	previewer := &deadlinePreviewer{}
	router, err := NewRouter(Dependencies{
		Logger:         createTestLogger(),
		LinkRepo:       &stubLinkRepo{},
		Queue:          stubQueue{},
		Previewer:      previewer,
		PreviewTimeout: time.Second,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.SetupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview?url=https://example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, previewer.hasDeadline)
}

func TestRouter_AdminUnauthorizedIsJSON(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	resp, err := http.Get(srv.URL + "/api/v1/admin/queue")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Unauthorized"}`, string(body))
}
