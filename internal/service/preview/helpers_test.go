package preview

import (
	"context"
	"io"
	"linkfolio/internal/domain"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// createTestLogger creates a logger for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// serviceRecorder is a fake image proxy and screenshot service. It records
// every request and answers with an image when accept returns true.
type serviceRecorder struct {
	mu       sync.Mutex
	requests []string
	accept   func(r *http.Request) bool
}

func (s *serviceRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mu.Unlock()

	if s.accept != nil && s.accept(r) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
}

func (s *serviceRecorder) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func newServiceServer(t *testing.T, accept func(r *http.Request) bool) (*httptest.Server, *serviceRecorder) {
	t.Helper()
	rec := &serviceRecorder{accept: accept}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return srv, rec
}

func newPageServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func acceptPath(paths ...string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		for _, p := range paths {
			if r.URL.Path == p {
				return true
			}
		}
		return false
	}
}

// testConfig points every template at the fake service server.
func testConfig(services string) Config {
	cfg := DefaultConfig()
	cfg.FetchTimeout = 2 * time.Second
	cfg.ValidateTimeout = time.Second
	cfg.ProxyTemplates = []string{
		services + "/proxy1?url={url_enc}&w={width}",
		services + "/proxy2?url={url_enc}&w={width}",
	}
	cfg.ScreenshotTemplates = []string{
		services + "/shot1?url={url_enc}",
		services + "/shot2?url={url_enc}",
	}
	return cfg
}

// recordingValidator accepts URLs containing any of the given substrings.
type recordingValidator struct {
	mu     sync.Mutex
	accept []string
	calls  []string
}

func (v *recordingValidator) Validate(_ context.Context, imageURL string) domain.ValidationResult {
	v.mu.Lock()
	v.calls = append(v.calls, imageURL)
	v.mu.Unlock()

	for _, a := range v.accept {
		if strings.Contains(imageURL, a) {
			ct := "image/png"
			return domain.ValidationResult{Accepted: true, StatusCode: 200, ContentTypeObserved: &ct}
		}
	}
	return domain.ValidationResult{StatusCode: 404}
}

func (v *recordingValidator) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

func parseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("invalid ip %q", s)
	}
	return ip
}
