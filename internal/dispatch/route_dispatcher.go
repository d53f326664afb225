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
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
)

// RouteSource yields the routing table to resolve against. It is called
// once per dispatch so the table can be swapped between requests.
type RouteSource func() *routing.RouteSet

// Static returns a RouteSource that always yields rs.
func Static(rs *routing.RouteSet) RouteSource {
	return func() *routing.RouteSet { return rs }
}

// RouteDispatcher resolves requests against a routing table and invokes
// the matched controller action.
type RouteDispatcher struct {
	routes RouteSource
	log    *slog.Logger
}

// NewRouteDispatcher creates a dispatcher over the given table source.
func NewRouteDispatcher(routes RouteSource, log *slog.Logger) *RouteDispatcher {
	return &RouteDispatcher{routes: routes, log: logutil.NoopIfNil(log)}
}

// Dispatch resolves and runs req. A *routing.RoutingError is returned when
// nothing matches; an error returned by the action is returned unchanged.
func (d *RouteDispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	r, err := NewHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	rs := d.routes()
	if rs == nil {
		return nil, &routing.RoutingError{Method: r.Method, Path: r.URL.Path, Reason: "no routes installed"}
	}
	match, err := rs.Resolve(r.Method, r.URL.Path)
	if err != nil {
		return nil, err
	}

	var (
		actionErr error
		seen      *http.Request
	)
	action := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		actionErr = match.Action(w, r)
	})
	h := chi.Chain(
		chimw.RequestID,
		middleware.RequestLoggerMiddleware(d.log),
		middleware.AccessLogMiddleware(d.log),
	).Handler(action)

	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, match.RouteContext))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if actionErr != nil {
		return nil, actionErr
	}

	d.log.Debug("dispatched",
		"method", r.Method,
		"path", r.URL.Path,
		"controller", match.Route.Controller.Name(),
		"action", match.ActionName,
		"status", rec.Code,
	)
	return capture(rec, seen, match.Route.Controller), nil
}

var _ Dispatcher = (*RouteDispatcher)(nil)
