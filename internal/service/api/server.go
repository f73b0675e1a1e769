package api

import (
	"context"
	"errors"
	"linkfolio/internal/config"
	"log/slog"
	"net/http"
	"time"
)

// writeSlack is the time left after a bounded preview to encode and write
// its response before the server cuts the connection
const writeSlack = 15 * time.Second

// APIService serves the HTTP API
type APIService struct {
	config *config.Config
	logger *slog.Logger

	// HTTP server
	server *http.Server
}

// New creates a new API service around handler
func New(config *config.Config, logger *slog.Logger, handler http.Handler) *APIService {
	return &APIService{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              ":" + config.Port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// GET /preview is cut off at the request budget
			WriteTimeout: config.Preview.RequestBudget() + writeSlack,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving the API. It returns nil after a graceful Stop.
func (s *APIService) Start() error {
	s.logger.Info("Starting API server", "port", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the API server
func (s *APIService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
