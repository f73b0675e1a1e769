package preview

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CascadeOrder selects which image source the cascade tries first.
type CascadeOrder string

const (
	// OrderScreenshotFirst tries screenshot services before metadata images.
	// A rendered page is taken as more representative than an arbitrary inline image.
	OrderScreenshotFirst CascadeOrder = "screenshot-first"

	// OrderMetadataFirst tries the page's own metadata image before screenshots.
	OrderMetadataFirst CascadeOrder = "metadata-first"
)

const (
	DefaultUserAgent       = "Mozilla/5.0 (compatible; PreviewBot/1.0; +https://yoursite.com/bot)"
	DefaultFetchTimeout    = 10 * time.Second
	DefaultValidateTimeout = 3 * time.Second
	DefaultBrowserTimeout  = 15 * time.Second
	DefaultMaxBodyBytes    = 1 << 20 // 1 MB
	DefaultMaxRedirects    = 5

	// ThumbnailWSTemplate is appended to the screenshot list when a key is configured
	ThumbnailWSTemplate = "https://api.thumbnail.ws/api/{key}/thumbnail/get?url={url_enc}&width={width}&height={height}"
)

// DefaultProxyTemplates are the image proxies tried for metadata images and favicons
var DefaultProxyTemplates = []string{
	"https://images.weserv.nl/?url={url_enc}&w={width}&h={height}&fit={fit}&output=png",
	"https://wsrv.nl/?url={url_enc}&w={width}&h={height}&fit={fit}",
}

// DefaultScreenshotTemplates are the screenshot services tried for the page itself
var DefaultScreenshotTemplates = []string{
	"https://mini.s-shot.ru/1024x768/JPEG/1024/Z100/?{url}",
	"https://image.thum.io/get/width/400/crop/600/png/{url}",
}

// Config holds the read-only settings of the preview pipeline.
//
// A Config is built once at process start and shared by every request.
// Nothing in the pipeline mutates it afterwards, so it needs no locking.
type Config struct {
	// FetchTimeout bounds the page GET.
	FetchTimeout time.Duration

	// ValidateTimeout bounds each image HEAD.
	ValidateTimeout time.Duration

	// UserAgent is sent on every outbound request.
	UserAgent string

	// MaxBodyBytes caps how much HTML is read from a page.
	MaxBodyBytes int64

	// MaxRedirects caps redirects followed by the fetcher and validator.
	MaxRedirects int

	// Order is the cascade order applied to every request of this process.
	Order CascadeOrder

	// ProxyTemplates wrap metadata images and favicons, tried in order.
	ProxyTemplates []string

	// ScreenshotTemplates render the target page, tried in order.
	ScreenshotTemplates []string

	// ThumbnailWSKey enables the thumbnail.ws screenshot service when set.
	ThumbnailWSKey string

	// Width, Height and Fit are substituted into templates.
	Width  int
	Height int
	Fit    string

	// DenyPrivateIPs refuses to connect to loopback, private and link-local addresses.
	DenyPrivateIPs bool

	// BrowserScreenshots enables the local headless browser screenshot strategy.
	BrowserScreenshots bool

	// BrowserTimeout bounds one local browser capture.
	BrowserTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:        DefaultFetchTimeout,
		ValidateTimeout:     DefaultValidateTimeout,
		UserAgent:           DefaultUserAgent,
		MaxBodyBytes:        DefaultMaxBodyBytes,
		MaxRedirects:        DefaultMaxRedirects,
		Order:               OrderScreenshotFirst,
		ProxyTemplates:      append([]string(nil), DefaultProxyTemplates...),
		ScreenshotTemplates: append([]string(nil), DefaultScreenshotTemplates...),
		Width:               400,
		Height:              200,
		Fit:                 "cover",
		BrowserTimeout:      DefaultBrowserTimeout,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error

	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.ValidateTimeout <= 0 {
		errs = append(errs, fmt.Errorf("validate timeout must be positive, got %s", c.ValidateTimeout))
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, errors.New("user agent must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes))
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("max redirects must not be negative, got %d", c.MaxRedirects))
	}
	if _, err := ParseCascadeOrder(string(c.Order)); err != nil {
		errs = append(errs, err)
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("thumbnail size must be positive, got %dx%d", c.Width, c.Height))
	}
	for _, tmpl := range append(append([]string(nil), c.ProxyTemplates...), c.ScreenshotTemplates...) {
		if err := validateTemplate(tmpl); err != nil {
			errs = append(errs, err)
		}
	}
	if c.BrowserScreenshots && c.BrowserTimeout <= 0 {
		errs = append(errs, fmt.Errorf("browser timeout must be positive, got %s", c.BrowserTimeout))
	}

	return errors.Join(errs...)
}

// RequestBudget bounds one whole preview: a page fetch plus a handful of
// image probes. Callers cut the cascade off here and get the placeholder.
func (c Config) RequestBudget() time.Duration {
	return c.FetchTimeout + 4*c.ValidateTimeout
}

// Screenshots returns the screenshot templates in the order they are tried.
func (c Config) Screenshots() []string {
	templates := append([]string(nil), c.ScreenshotTemplates...)
	if c.ThumbnailWSKey != "" {
		templates = append(templates, ThumbnailWSTemplate)
	}
	return templates
}

// ParseCascadeOrder parses a PREVIEW_CASCADE_ORDER value.
func ParseCascadeOrder(s string) (CascadeOrder, error) {
	switch CascadeOrder(strings.ToLower(strings.TrimSpace(s))) {
	case OrderScreenshotFirst:
		return OrderScreenshotFirst, nil
	case OrderMetadataFirst:
		return OrderMetadataFirst, nil
	}
	return "", fmt.Errorf("unknown cascade order %q (want %q or %q)", s, OrderScreenshotFirst, OrderMetadataFirst)
}

func validateTemplate(tmpl string) error {
	if !strings.Contains(tmpl, "{url}") && !strings.Contains(tmpl, "{url_enc}") {
		return fmt.Errorf("template %q has no {url} or {url_enc} placeholder", tmpl)
	}
	probe := strings.NewReplacer("{url}", "x", "{url_enc}", "x", "{width}", "1", "{height}", "1", "{fit}", "x", "{key}", "x").Replace(tmpl)
	u, err := url.Parse(probe)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("template %q is not an http(s) URL", tmpl)
	}
	return nil
}

// expand fills a service template for one target URL.
func (c Config) expand(tmpl, target string) string {
	return strings.NewReplacer(
		"{url_enc}", url.QueryEscape(target),
		"{url}", target,
		"{width}", strconv.Itoa(c.Width),
		"{height}", strconv.Itoa(c.Height),
		"{fit}", c.Fit,
		"{key}", c.ThumbnailWSKey,
	).Replace(tmpl)
}
