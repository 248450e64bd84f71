// Package shield provides the HTTP middleware the draft service mounts in
// front of its routes: panic recovery, security headers, a request body
// cap and request IDs.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(logger, 8<<20) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hazyhaar/draftkeeper/kit"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns chi's Recoverer followed by SecurityHeaders,
// MaxBody and RequestID. A nil logger means slog.Default().
func DefaultStack(logger *slog.Logger, maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.Recoverer,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		RequestID(logger),
	}
}

// RequestID assigns each request a UUIDv7, honouring an incoming
// X-Request-ID. The id goes into the context under kit.RequestIDKey, the
// response header, and a per-request logger derived from base (nil means
// slog.Default()).
func RequestID(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return requestID(base, next)
	}
}

func requestID(base *slog.Logger, next http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.Must(uuid.NewV7()).String()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := kit.WithRequestID(kit.WithTransport(r.Context(), "http"), id)
		logger := base.With(
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
