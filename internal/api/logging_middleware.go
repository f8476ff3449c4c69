package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/bank-manager/internal/security"
)

// RequestLogger emits one line per request with the matched route pattern and
// a write flag, so balance-changing traffic can be filtered from reads.
// Server errors log at warn.
func RequestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			attrs := []any{
				"cid", security.CorrelationIDFromContext(r.Context()),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", dur.Milliseconds(),
				"write", r.Method != http.MethodGet && r.Method != http.MethodHead,
			}
			if sw.status >= http.StatusInternalServerError {
				l.Warn("http_request", attrs...)
				return
			}
			l.Info("http_request", attrs...)
		})
	}
}
