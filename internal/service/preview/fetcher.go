package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Fetcher downloads the HTML of a target page.
type Fetcher interface {
	Fetch(ctx context.Context, target *url.URL) ([]byte, error)
}

// HTTPFetcher fetches pages with a bounded GET.
type HTTPFetcher struct {
	client  *http.Client
	cfg     Config
	logger  *slog.Logger
	metrics Recorder
}

// NewHTTPFetcher creates a fetcher with a client built from cfg.
func NewHTTPFetcher(cfg Config, logger *slog.Logger, metrics Recorder) *HTTPFetcher {
	return NewHTTPFetcherWithClient(nil, cfg, logger, metrics)
}

// NewHTTPFetcherWithClient creates a fetcher with a custom HTTP client.
// If client is nil, one is built from cfg.
func NewHTTPFetcherWithClient(client *http.Client, cfg Config, logger *slog.Logger, metrics Recorder) *HTTPFetcher {
	if client == nil {
		client = newHTTPClient(cfg)
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &HTTPFetcher{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch performs one GET of target and returns at most MaxBodyBytes of body.
// Failures are reported as *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, target *url.URL) ([]byte, error) {
	start := time.Now()
	body, err := f.fetch(ctx, target)

	outcome := "ok"
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		outcome = fetchErr.Kind.String()
	}
	f.metrics.ObserveFetch(outcome, time.Since(start))

	return body, err
}

func (f *HTTPFetcher) fetch(ctx context.Context, target *url.URL) ([]byte, error) {
	rawURL := target.String()

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
		}
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: FetchHTTPStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
		}
		return nil, &FetchError{Kind: FetchNetwork, URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	f.logger.Debug("Fetched page",
		"url", rawURL,
		"status", resp.StatusCode,
		"bytes", len(body),
	)
	return body, nil
}
