// Package middleware wraps every in-process dispatch with request-scoped
// logging.
package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/sessionkit/internal/platform/appctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger to the request context.
//
// It must run AFTER chimw.RequestID so that chimw.GetReqID(r.Context())
// returns a non-empty value.
func RequestLoggerMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := base.With(
				"request_id", chimw.GetReqID(r.Context()),
				"session_id", appctx.SessionIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path, // path only, no query string
			)

			ctx := appctx.WithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
