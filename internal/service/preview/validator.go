package preview

import (
	"context"
	"linkfolio/internal/domain"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Validator decides whether a candidate URL serves an image.
type Validator interface {
	Validate(ctx context.Context, imageURL string) domain.ValidationResult
}

// HTTPValidator probes candidates with a bounded HEAD request.
type HTTPValidator struct {
	client  *http.Client
	cfg     Config
	logger  *slog.Logger
	metrics Recorder
}

// NewHTTPValidator creates a validator with a client built from cfg.
func NewHTTPValidator(cfg Config, logger *slog.Logger, metrics Recorder) *HTTPValidator {
	return NewHTTPValidatorWithClient(nil, cfg, logger, metrics)
}

// NewHTTPValidatorWithClient creates a validator with a custom HTTP client.
func NewHTTPValidatorWithClient(client *http.Client, cfg Config, logger *slog.Logger, metrics Recorder) *HTTPValidator {
	if client == nil {
		client = newHTTPClient(cfg)
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &HTTPValidator{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Validate accepts imageURL only for a 2xx response declaring an image/* content type.
// Every failure, including a timeout or a malformed URL, yields a rejection.
func (v *HTTPValidator) Validate(ctx context.Context, imageURL string) domain.ValidationResult {
	result := v.validate(ctx, imageURL)
	v.metrics.ObserveValidation(result.Accepted)
	return result
}

func (v *HTTPValidator) validate(ctx context.Context, imageURL string) domain.ValidationResult {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.logger.Debug("Rejected image candidate", "url", imageURL, "reason", "malformed url")
		return domain.ValidationResult{}
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.cfg.ValidateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, imageURL, nil)
	if err != nil {
		return domain.ValidationResult{}
	}
	req.Header.Set("User-Agent", v.cfg.UserAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("Rejected image candidate", "url", imageURL, "error", err)
		return domain.ValidationResult{}
	}
	resp.Body.Close()

	result := domain.ValidationResult{StatusCode: resp.StatusCode}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		result.ContentTypeObserved = &ct
	}

	isImage := result.ContentTypeObserved != nil &&
		strings.HasPrefix(strings.ToLower(strings.TrimSpace(*result.ContentTypeObserved)), "image/")
	result.Accepted = resp.StatusCode >= 200 && resp.StatusCode <= 299 && isImage

	v.logger.Debug("Validated image candidate",
		"url", imageURL,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"accepted", result.Accepted,
	)
	return result
}
