package middleware

import (
	"context"
	"crypto/subtle"
	"linkfolio/internal/domain"
	"log/slog"
	"net/http"
)

type sessionKey struct{}

// WithSession stores the admin session on the request context
func WithSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session set by AdminAuth, or an anonymous one
func SessionFromContext(ctx context.Context) domain.Session {
	if session, ok := ctx.Value(sessionKey{}).(domain.Session); ok {
		return session
	}
	return domain.Anonymous()
}

// AdminAuth is a simple admin authentication middleware using API key
type AdminAuth struct {
	adminAPIKey string
	logger      *slog.Logger
}

// NewAdminAuth creates a new admin authentication middleware
func NewAdminAuth(apiKey string, logger *slog.Logger) *AdminAuth {
	if apiKey == "" {
		logger.Warn("ADMIN_API_KEY not set - admin endpoints will be unprotected")
	}

	return &AdminAuth{
		adminAPIKey: apiKey,
		logger:      logger,
	}
}

// Middleware authenticates the request and attaches an admin session to it
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If no API key is configured, allow all requests (development mode)
		if a.adminAPIKey == "" {
			a.logger.Debug("Admin auth bypassed - no API key configured")
			ctx := WithSession(r.Context(), domain.NewSession(domain.SessionSourceAPI, "dev"))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.logger.Warn("Admin request rejected - no authorization header",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		// Expect format: "Bearer <api_key>"
		expectedAuth := "Bearer " + a.adminAPIKey
		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expectedAuth)) != 1 {
			a.logger.Warn("Admin request rejected - invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		a.logger.Debug("Admin request authenticated",
			"path", r.URL.Path,
			"method", r.Method,
		)

		ctx := WithSession(r.Context(), domain.NewSession(domain.SessionSourceAPI, "admin"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
