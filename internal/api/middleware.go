// ABOUTME: HTTP middleware for request logging and correlation IDs
// ABOUTME: Health checks are not logged to keep probe noise out of the logs

package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if strings.HasSuffix(r.URL.Path, "/health") {
			return
		}
		observability.LogWithContext(r.Context(), logger, slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// NewServerHandler wires routes behind correlation and logging middleware.
func NewServerHandler(h *Handler) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return observability.CorrelationMiddleware(LoggingMiddleware(h.logger, mux))
}
