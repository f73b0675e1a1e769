package http

import (
	"linkfolio/internal/domain"
	"linkfolio/internal/http/handlers"
	"linkfolio/internal/http/middleware"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware represents a HTTP middleware function
type Middleware func(http.Handler) http.Handler

// Dependencies are the collaborators the routes are built from
type Dependencies struct {
	Logger      *slog.Logger
	LinkRepo    domain.LinkRepository
	Queue       domain.QueueRepository
	Previewer   handlers.Previewer
	AdminAPIKey string
	RateLimiter *middleware.RateLimiter

	// PreviewTimeout bounds each GET /preview; zero disables the deadline
	PreviewTimeout time.Duration

	// HealthChecks are run by GET /health, keyed by dependency name
	HealthChecks map[string]handlers.HealthCheck

	// Gatherer backs /metrics; Registerer receives the HTTP collectors.
	// Both may be nil to disable metrics.
	Gatherer   prometheus.Gatherer
	Registerer prometheus.Registerer
}

type Router struct {
	mux               *http.ServeMux
	logger            *slog.Logger
	middleware        []Middleware
	adminAuth         *middleware.AdminAuth
	rateLimiter       *middleware.RateLimiter
	httpMetrics       *middleware.HTTPMetrics
	gatherer          prometheus.Gatherer
	healthHandler     *handlers.HealthHandler
	statsHandler      *handlers.StatsHandler
	previewHandler    *handlers.PreviewHandler
	linksHandler      *handlers.LinksHandler
	adminLinksHandler *handlers.AdminLinksHandler
}

func NewRouter(deps Dependencies) (*Router, error) {
	r := &Router{
		mux:               http.NewServeMux(),
		logger:            deps.Logger,
		adminAuth:         middleware.NewAdminAuth(deps.AdminAPIKey, deps.Logger),
		rateLimiter:       deps.RateLimiter,
		gatherer:          deps.Gatherer,
		healthHandler:     handlers.NewHealthHandler(deps.Logger, deps.HealthChecks),
		statsHandler:      handlers.NewStatsHandler(deps.Logger, deps.LinkRepo, deps.Queue),
		previewHandler:    handlers.NewPreviewHandler(deps.Logger, deps.Previewer, deps.PreviewTimeout),
		linksHandler:      handlers.NewLinksHandler(deps.Logger, deps.LinkRepo),
		adminLinksHandler: handlers.NewAdminLinksHandler(deps.LinkRepo, deps.Queue, deps.Logger),
	}

	if deps.Registerer != nil {
		m, err := middleware.NewHTTPMetrics(deps.Registerer)
		if err != nil {
			return nil, err
		}
		r.httpMetrics = m
	}

	return r, nil
}

// Use adds middleware around every route. Middleware runs in the order added.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return r.adminAuth.Middleware(h)
}

func (r *Router) SetupRoutes() http.Handler {
	// Health check
	r.mux.HandleFunc("GET /health", r.healthHandler.HandleHealth)

	// Live preview, rate limited per client
	var previewRoute http.Handler = http.HandlerFunc(r.previewHandler.GetPreview)
	if r.rateLimiter != nil {
		previewRoute = r.rateLimiter.Middleware(previewRoute)
	}
	r.mux.Handle("GET /preview", previewRoute)

	// API v1 routes - Public link listing
	r.mux.HandleFunc("GET /api/v1/links", r.linksHandler.ListLinks)
	r.mux.HandleFunc("GET /api/v1/links/{id}", r.linksHandler.GetLink)

	// API v1 routes - Admin
	r.mux.Handle("POST /api/v1/admin/links", r.admin(r.adminLinksHandler.CreateLink))
	r.mux.Handle("DELETE /api/v1/admin/links/{id}", r.admin(r.adminLinksHandler.DeleteLink))
	r.mux.Handle("POST /api/v1/admin/links/{id}/refresh", r.admin(r.adminLinksHandler.RefreshLink))
	r.mux.Handle("GET /api/v1/admin/queue", r.admin(r.statsHandler.HandleQueueStats))

	if r.gatherer != nil {
		r.mux.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	// Metrics must wrap the mux directly to see the matched pattern
	var h http.Handler = r.mux
	if r.httpMetrics != nil {
		h = r.httpMetrics.Middleware(h)
	}

	chain := append([]Middleware{
		middleware.RequestID,
		middleware.Logging(r.logger),
		middleware.Recover(r.logger),
		middleware.CORS,
	}, r.middleware...)

	// Wrap in reverse so the first middleware runs first
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
