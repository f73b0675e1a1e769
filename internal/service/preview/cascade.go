package preview

import (
	"context"
	"linkfolio/internal/domain"
	"log/slog"
	"net/url"
)

// CascadeInput is everything the cascade knows about one page.
// MetadataImages and Icons are already absolute.
type CascadeInput struct {
	Page           *url.URL
	Domain         string
	MetadataImages []string
	Icons          []string
}

// Strategy proposes a thumbnail for a page. ok is false when the strategy has
// nothing usable and the cascade should move on.
type Strategy interface {
	Kind() domain.StrategyKind
	Try(ctx context.Context, in CascadeInput) (domain.ImageCandidate, bool)
}

// firstSuccess runs strategies in order and returns the first one that succeeds.
func firstSuccess(ctx context.Context, in CascadeInput, strategies []Strategy) (domain.ImageCandidate, bool) {
	for _, s := range strategies {
		if c, ok := s.Try(ctx, in); ok {
			return c, true
		}
	}
	return domain.ImageCandidate{}, false
}

// candidateStrategy validates a fixed list of candidates in order.
type candidateStrategy struct {
	kind       domain.StrategyKind
	candidates func(in CascadeInput) []domain.ImageCandidate
	validator  Validator
	logger     *slog.Logger
}

func (s *candidateStrategy) Kind() domain.StrategyKind { return s.kind }

func (s *candidateStrategy) Try(ctx context.Context, in CascadeInput) (domain.ImageCandidate, bool) {
	for _, c := range s.candidates(in) {
		if ctx.Err() != nil {
			return domain.ImageCandidate{}, false
		}
		if s.validator.Validate(ctx, c.SourceURL).Accepted {
			s.logger.Debug("Image candidate accepted",
				"strategy", c.StrategyKind.String(),
				"url", c.SourceURL,
			)
			return c, true
		}
	}
	return domain.ImageCandidate{}, false
}

// placeholderStrategy terminates every cascade.
type placeholderStrategy struct{}

func (placeholderStrategy) Kind() domain.StrategyKind { return domain.StrategyPlaceholder }

func (placeholderStrategy) Try(_ context.Context, in CascadeInput) (domain.ImageCandidate, bool) {
	return domain.ImageCandidate{
		SourceURL:    Placeholder(in.Domain),
		StrategyKind: domain.StrategyPlaceholder,
	}, true
}

func screenshotCandidates(cfg Config) func(in CascadeInput) []domain.ImageCandidate {
	templates := cfg.Screenshots()
	return func(in CascadeInput) []domain.ImageCandidate {
		target := in.Page.String()
		out := make([]domain.ImageCandidate, 0, len(templates))
		for _, tmpl := range templates {
			out = append(out, domain.ImageCandidate{
				SourceURL:    cfg.expand(tmpl, target),
				StrategyKind: domain.StrategyScreenshot,
				Template:     tmpl,
			})
		}
		return out
	}
}

// primaryMetadataImage is the first metadata image that is not a site icon.
func primaryMetadataImage(in CascadeInput) (string, bool) {
	for _, img := range in.MetadataImages {
		if !IsIconURL(img) {
			return img, true
		}
	}
	return "", false
}

func metaProxiedCandidates(cfg Config) func(in CascadeInput) []domain.ImageCandidate {
	return func(in CascadeInput) []domain.ImageCandidate {
		img, ok := primaryMetadataImage(in)
		if !ok {
			return nil
		}
		out := make([]domain.ImageCandidate, 0, len(cfg.ProxyTemplates))
		for _, tmpl := range cfg.ProxyTemplates {
			out = append(out, domain.ImageCandidate{
				SourceURL:    cfg.expand(tmpl, img),
				StrategyKind: domain.StrategyMetaImageProxied,
				Template:     tmpl,
			})
		}
		return out
	}
}

func metaDirectCandidates(in CascadeInput) []domain.ImageCandidate {
	img, ok := primaryMetadataImage(in)
	if !ok {
		return nil
	}
	return []domain.ImageCandidate{{SourceURL: img, StrategyKind: domain.StrategyMetaImageDirect}}
}

// faviconCandidates yields the page's preferred icon and then /favicon.ico.
// in.Icons is already ordered apple-touch-icon, icon, shortcut icon; the
// rest of the list is never probed.
func faviconCandidates(cfg Config) func(in CascadeInput) []domain.ImageCandidate {
	return func(in CascadeInput) []domain.ImageCandidate {
		var icons []string
		if len(in.Icons) > 0 {
			icons = append(icons, in.Icons[0])
		}
		if fallback, ok := Normalize("/favicon.ico", in.Page); ok {
			icons = append(icons, fallback)
		}
		icons = dedupe(icons)

		out := make([]domain.ImageCandidate, 0, len(icons))
		for _, icon := range icons {
			c := domain.ImageCandidate{SourceURL: icon, StrategyKind: domain.StrategyFavicon}
			if len(cfg.ProxyTemplates) > 0 {
				c.Template = cfg.ProxyTemplates[0]
				c.SourceURL = cfg.expand(c.Template, icon)
			}
			out = append(out, c)
		}
		return out
	}
}

// Resolver runs the image cascade for a page.
type Resolver struct {
	strategies []Strategy
	logger     *slog.Logger
	metrics    Recorder
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	screenshotters []Strategy
}

// WithScreenshotStrategy appends a strategy to the screenshot stage, after
// the configured screenshot services.
func WithScreenshotStrategy(s Strategy) ResolverOption {
	return func(o *resolverOptions) {
		o.screenshotters = append(o.screenshotters, s)
	}
}

// NewResolver builds the cascade in the order set by cfg.Order.
func NewResolver(cfg Config, validator Validator, logger *slog.Logger, metrics Recorder, opts ...ResolverOption) *Resolver {
	var o resolverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}

	screenshot := []Strategy{&candidateStrategy{
		kind:       domain.StrategyScreenshot,
		candidates: screenshotCandidates(cfg),
		validator:  validator,
		logger:     logger,
	}}
	screenshot = append(screenshot, o.screenshotters...)

	metadata := []Strategy{
		&candidateStrategy{
			kind:       domain.StrategyMetaImageProxied,
			candidates: metaProxiedCandidates(cfg),
			validator:  validator,
			logger:     logger,
		},
		&candidateStrategy{
			kind:       domain.StrategyMetaImageDirect,
			candidates: metaDirectCandidates,
			validator:  validator,
			logger:     logger,
		},
	}

	var strategies []Strategy
	switch cfg.Order {
	case OrderMetadataFirst:
		strategies = append(append(strategies, metadata...), screenshot...)
	default:
		strategies = append(append(strategies, screenshot...), metadata...)
	}
	strategies = append(strategies,
		&candidateStrategy{
			kind:       domain.StrategyFavicon,
			candidates: faviconCandidates(cfg),
			validator:  validator,
			logger:     logger,
		},
		placeholderStrategy{},
	)

	return &Resolver{
		strategies: strategies,
		logger:     logger,
		metrics:    metrics,
	}
}

// Kinds returns the strategy kinds in the order they are tried.
func (r *Resolver) Kinds() []domain.StrategyKind {
	kinds := make([]domain.StrategyKind, 0, len(r.strategies))
	for _, s := range r.strategies {
		kinds = append(kinds, s.Kind())
	}
	return kinds
}

// Resolve picks the thumbnail for a page. It always returns a candidate: the
// placeholder terminates the cascade.
func (r *Resolver) Resolve(ctx context.Context, in CascadeInput) domain.ImageCandidate {
	selected, ok := firstSuccess(ctx, in, r.strategies)
	if !ok {
		selected, _ = placeholderStrategy{}.Try(ctx, in)
	}
	r.metrics.ObserveStrategy(selected.StrategyKind.String())
	return selected
}
