package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/sessionkit/internal/platform/http/middleware"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
)

// HandlerDispatcher runs requests against any http.Handler, typically an
// application's own router. There is no routing table, so there are no
// routing errors: an unknown path is whatever the handler answers.
type HandlerDispatcher struct {
	handler http.Handler
}

// NewHandlerDispatcher wraps h with the same request logging a
// RouteDispatcher uses.
func NewHandlerDispatcher(h http.Handler, log *slog.Logger) *HandlerDispatcher {
	log = logutil.NoopIfNil(log)
	return &HandlerDispatcher{
		handler: chi.Chain(
			chimw.RequestID,
			middleware.RequestLoggerMiddleware(log),
			middleware.AccessLogMiddleware(log),
		).Handler(h),
	}
}

// Dispatch serves req. Panics in the handler propagate to the caller.
func (d *HandlerDispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	r, err := NewHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, r)
	return capture(rec, r, nil), nil
}

var _ Dispatcher = (*HandlerDispatcher)(nil)
