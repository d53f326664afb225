// Package harness runs integration tests against an application without a
// listening socket. A Harness owns the routing table (or plain handler),
// hands out independent sessions and scopes temporary route tables.
package harness

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MahdiBaghbani/sessionkit/internal/dispatch"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/config"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
	"github.com/MahdiBaghbani/sessionkit/internal/session"
	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

// Option configures a Harness.
type Option func(*Harness)

// WithConfig takes the session defaults from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(h *Harness) {
		h.sessionOpts.Host = cfg.Session.Host
		h.sessionOpts.HTTPS = cfg.Session.HTTPS
		h.sessionOpts.RemoteAddr = cfg.Session.RemoteAddr
		h.sessionOpts.Accept = cfg.Session.Accept
		h.sessionOpts.MaxRedirects = cfg.Session.MaxRedirects
	}
}

// WithLogger sets the logger passed to dispatchers and sessions.
func WithLogger(log *slog.Logger) Option {
	return func(h *Harness) { h.log = log }
}

// WithRouteSet installs the initial routing table.
func WithRouteSet(rs *routing.RouteSet) Option {
	return func(h *Harness) { h.routes.Store(rs) }
}

// WithHandler dispatches to a plain handler instead of a routing table.
// Route scopes then have no effect on dispatch.
func WithHandler(handler http.Handler) Option {
	return func(h *Harness) { h.handler = handler }
}

// WithRecorder records every exchange of every session.
func WithRecorder(r session.Recorder) Option {
	return func(h *Harness) { h.recorder = r }
}

// Harness is the entry point of integration tests.
type Harness struct {
	log         *slog.Logger
	sessionOpts session.Options
	handler     http.Handler
	dispatcher  dispatch.Dispatcher
	recorder    session.Recorder

	routes  atomic.Pointer[routing.RouteSet]
	scopeMu sync.Mutex

	mu      sync.Mutex
	current *session.Session

	// Owned resources, closed by Close.
	controllers []controller.Controller
	driver      store.Driver
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{sessionOpts: session.DefaultOptions()}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logutil.NoopIfNil(h.log)

	if h.handler != nil {
		h.dispatcher = dispatch.NewHandlerDispatcher(h.handler, h.log)
	} else {
		h.dispatcher = dispatch.NewRouteDispatcher(h.routes.Load, h.log)
		h.sessionOpts.Rewriter = h
	}
	return h
}

// Start creates a harness and closes it when the test ends.
func Start(t testing.TB, opts ...Option) *Harness {
	t.Helper()
	h := New(opts...)
	t.Cleanup(func() {
		if err := h.Close(); err != nil {
			t.Errorf("failed to close harness: %v", err)
		}
	})
	return h
}

// Routes returns the routing table currently installed.
func (h *Harness) Routes() *routing.RouteSet { return h.routes.Load() }

// Rewrite resolves URL options against the installed routing table.
func (h *Harness) Rewrite(opts controller.URLOptions) (string, error) {
	rs := h.routes.Load()
	if rs == nil {
		return "", routing.ErrNoURL
	}
	return rs.Rewrite(opts)
}

// Dispatcher returns the dispatcher sessions run against.
func (h *Harness) Dispatcher() dispatch.Dispatcher { return h.dispatcher }

// Transcript returns the transcript store, or nil when recording is off.
func (h *Harness) Transcript() store.TranscriptStore {
	ts, _ := h.recorder.(store.TranscriptStore)
	return ts
}

// OpenSession returns a new independent session. setup, if given, runs
// before the session is returned.
func (h *Harness) OpenSession(setup func(*session.Session)) *session.Session {
	opts := h.sessionOpts
	opts.Logger = h.log
	opts.Recorder = h.recorder
	s := session.New(h.dispatcher, opts)
	if setup != nil {
		setup(s)
	}
	return s
}

// Session returns the default session, creating it on first use.
func (h *Harness) Session() *session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current == nil {
		h.current = h.OpenSession(nil)
	}
	return h.current
}

// Reset replaces the default session with a fresh one.
func (h *Harness) Reset() *session.Session {
	s := h.OpenSession(nil)
	h.mu.Lock()
	h.current = s
	h.mu.Unlock()
	return s
}

// WithRoutes installs rs for the duration of body and restores the
// previous table afterwards, including when body fails or panics.
// Scopes on one harness never overlap.
func (h *Harness) WithRoutes(rs *routing.RouteSet, body func() error) error {
	h.scopeMu.Lock()
	defer h.scopeMu.Unlock()

	prev := h.routes.Swap(rs)
	defer h.routes.Store(prev)

	n := 0
	if rs != nil {
		n = rs.Len()
	}
	h.log.Debug("route scope entered", "routes", n)
	return body()
}

// Close releases controllers in reverse construction order, then the
// transcript driver.
func (h *Harness) Close() error {
	var errs []error
	for i := len(h.controllers) - 1; i >= 0; i-- {
		if err := h.controllers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.controllers = nil
	if h.driver != nil {
		if err := h.driver.Close(); err != nil {
			errs = append(errs, err)
		}
		h.driver = nil
	}
	return errors.Join(errs...)
}

// Get issues a GET on the default session.
func (h *Harness) Get(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Get(ctx, path, params, headers)
}

// Post issues a POST on the default session.
func (h *Harness) Post(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Post(ctx, path, params, headers)
}

// Put issues a PUT on the default session.
func (h *Harness) Put(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Put(ctx, path, params, headers)
}

// Patch issues a PATCH on the default session.
func (h *Harness) Patch(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Patch(ctx, path, params, headers)
}

// Delete issues a DELETE on the default session.
func (h *Harness) Delete(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Delete(ctx, path, params, headers)
}

// Head issues a HEAD on the default session.
func (h *Harness) Head(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().Head(ctx, path, params, headers)
}

// XHR issues a script-originated request on the default session.
func (h *Harness) XHR(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().XHR(ctx, method, path, params, headers)
}

// FollowRedirect follows the last redirect of the default session.
func (h *Harness) FollowRedirect(ctx context.Context) (int, error) {
	return h.Session().FollowRedirect(ctx)
}

// RequestViaRedirect runs a redirect chain on the default session.
func (h *Harness) RequestViaRedirect(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	return h.Session().RequestViaRedirect(ctx, method, path, params, headers)
}
