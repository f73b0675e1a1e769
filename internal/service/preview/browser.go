package preview

import (
	"context"
	"encoding/base64"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	browserViewportWidth  = 1024
	browserViewportHeight = 768
	browserJPEGQuality    = 80

	// BrowserTemplate labels candidates produced by the local browser.
	BrowserTemplate = "browser"
)

// CaptureFunc renders pageURL and returns a JPEG screenshot.
type CaptureFunc func(ctx context.Context, pageURL string) ([]byte, error)

// BrowserScreenshotter is a screenshot strategy backed by a local headless
// Chromium. Each capture launches and tears down its own browser, so nothing
// is shared between requests.
type BrowserScreenshotter struct {
	cfg     Config
	logger  *slog.Logger
	capture CaptureFunc
}

// NewBrowserScreenshotter creates a strategy that captures with go-rod.
func NewBrowserScreenshotter(cfg Config, logger *slog.Logger) *BrowserScreenshotter {
	b := &BrowserScreenshotter{cfg: cfg, logger: logger}
	b.capture = b.captureWithRod
	return b
}

// NewBrowserScreenshotterWithCapture creates the strategy around a custom capture function.
func NewBrowserScreenshotterWithCapture(cfg Config, logger *slog.Logger, capture CaptureFunc) *BrowserScreenshotter {
	return &BrowserScreenshotter{cfg: cfg, logger: logger, capture: capture}
}

func (b *BrowserScreenshotter) Kind() domain.StrategyKind { return domain.StrategyScreenshot }

// Try captures the page and returns it as a data URI.
func (b *BrowserScreenshotter) Try(ctx context.Context, in CascadeInput) (domain.ImageCandidate, bool) {
	if ctx.Err() != nil {
		return domain.ImageCandidate{}, false
	}

	captureCtx, cancel := context.WithTimeout(ctx, b.cfg.BrowserTimeout)
	defer cancel()

	shot, err := b.capture(captureCtx, in.Page.String())
	if err != nil || len(shot) == 0 {
		b.logger.Debug("Browser screenshot failed", "url", in.Page.String(), "error", err)
		return domain.ImageCandidate{}, false
	}

	return domain.ImageCandidate{
		SourceURL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(shot),
		StrategyKind: domain.StrategyScreenshot,
		Template:     BrowserTemplate,
	}, true
}

func (b *BrowserScreenshotter) captureWithRod(ctx context.Context, pageURL string) ([]byte, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-extensions").
		Set("no-first-run").
		Set("hide-scrollbars").
		Set("mute-audio")
	defer l.Cleanup()

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             browserViewportWidth,
		Height:            browserViewportHeight,
		DeviceScaleFactor: 1.0,
	}); err != nil {
		return nil, fmt.Errorf("setting viewport: %w", err)
	}

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigating: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for load: %w", err)
	}

	quality := browserJPEGQuality
	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return shot, nil
}
