package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthTimeout bounds the queue probe behind /health
const healthTimeout = 2 * time.Second

// NewMetricsHandler serves /metrics from gatherer and a /health probe
// backed by the worker's queue check.
func NewMetricsHandler(gatherer prometheus.Gatherer, w *WorkerService) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status, code := "healthy", http.StatusOK
		body := map[string]interface{}{}
		if err := w.HealthCheck(ctx); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
			body["error"] = err.Error()
		}
		body["status"] = status
		body["stats"] = w.GetStats()

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		_ = json.NewEncoder(rw).Encode(body)
	})
	return mux
}

// StartMetricsServer serves handler on port until ctx is cancelled
func StartMetricsServer(ctx context.Context, logger *slog.Logger, port string, handler http.Handler) *http.Server {
	server := &http.Server{
		Addr:         net.JoinHostPort("", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Metrics server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		} else {
			logger.Info("Metrics server stopped")
		}
	}()

	return server
}
