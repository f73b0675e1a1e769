package preview

import (
	"context"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Assembler turns a URL into a preview record. It is safe for concurrent use;
// every call allocates its own intermediate state.
type Assembler struct {
	fetcher  Fetcher
	resolver *Resolver
	logger   *slog.Logger
	metrics  Recorder
}

// NewAssembler creates an assembler from its collaborators.
func NewAssembler(fetcher Fetcher, resolver *Resolver, logger *slog.Logger, metrics Recorder) *Assembler {
	if metrics == nil {
		metrics = NopRecorder{}
	}
	return &Assembler{
		fetcher:  fetcher,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
	}
}

// New wires the default HTTP fetcher, HEAD validator and cascade from cfg.
// The local browser strategy is added when cfg.BrowserScreenshots is set.
func New(cfg Config, logger *slog.Logger, metrics Recorder) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preview config: %w", err)
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}

	client := newHTTPClient(cfg)
	fetcher := NewHTTPFetcherWithClient(client, cfg, logger, metrics)
	validator := NewHTTPValidatorWithClient(client, cfg, logger, metrics)

	var opts []ResolverOption
	if cfg.BrowserScreenshots {
		opts = append(opts, WithScreenshotStrategy(NewBrowserScreenshotter(cfg, logger)))
	}
	resolver := NewResolver(cfg, validator, logger, metrics, opts...)

	logger.Info("Preview pipeline configured",
		"cascade_order", string(cfg.Order),
		"screenshot_services", len(cfg.Screenshots()),
		"proxy_services", len(cfg.ProxyTemplates),
		"browser_screenshots", cfg.BrowserScreenshots,
		"deny_private_ips", cfg.DenyPrivateIPs,
	)

	return NewAssembler(fetcher, resolver, logger, metrics), nil
}

// ParseTarget validates a raw target URL. It returns ErrURLRequired for blank
// input and ErrInvalidURL for anything that is not an absolute http(s) URL with a host.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrURLRequired
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// Preview validates raw and assembles its record. The only errors are
// ErrURLRequired and ErrInvalidURL, both returned before any network call.
// The record echoes raw as its url.
func (a *Assembler) Preview(ctx context.Context, raw string) (domain.PreviewRecord, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return domain.PreviewRecord{}, err
	}
	return a.assemble(ctx, target, raw), nil
}

// Assemble fetches, extracts and resolves a preview for target. It never
// fails: any stage failure produces the degraded record.
func (a *Assembler) Assemble(ctx context.Context, target *url.URL) domain.PreviewRecord {
	if target == nil {
		a.logger.Warn("Preview requested without a target")
		return degraded("", "")
	}
	return a.assemble(ctx, target, target.String())
}

func (a *Assembler) assemble(ctx context.Context, target *url.URL, echo string) (record domain.PreviewRecord) {
	start := time.Now()
	outcome := "ok"
	var host string

	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("Preview assembly panicked", "url", echo, "panic", p)
			record = degraded(host, echo)
			outcome = "degraded"
		}
		a.metrics.ObservePreview(outcome, time.Since(start))
	}()

	host = target.Hostname()

	body, err := a.fetcher.Fetch(ctx, target)
	if err != nil {
		a.logger.Warn("Failed to fetch preview target", "url", echo, "error", err)
		outcome = "degraded"
		return degraded(host, echo)
	}

	meta := Extract(body)
	in := CascadeInput{
		Page:           target,
		Domain:         host,
		MetadataImages: normalizeAll(meta.RawImageCandidates, target),
		Icons:          normalizeAll(meta.IconCandidates, target),
	}
	selected := a.resolver.Resolve(ctx, in)

	a.logger.Info("Preview resolved",
		"url", echo,
		"strategy", selected.StrategyKind.String(),
		"image_candidates", len(in.MetadataImages),
		"duration", time.Since(start),
	)

	image := selected.SourceURL
	return domain.PreviewRecord{
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
		Image:       &image,
		URL:         echo,
		Selected:    selected,
	}
}

// degraded is the record returned when the page could not be fetched or a
// stage failed unexpectedly.
func degraded(host, echo string) domain.PreviewRecord {
	image := Unavailable(host)
	return domain.PreviewRecord{
		Title:       host,
		Description: domain.UnavailableDescription,
		Image:       &image,
		URL:         echo,
		Selected: domain.ImageCandidate{
			SourceURL:    image,
			StrategyKind: domain.StrategyPlaceholder,
		},
		Degraded: true,
	}
}
