// Package routing holds the ordered routing table the dispatcher resolves
// paths against. Patterns use chi syntax ("/tests/{id}", "/{action}").
// Unlike a chi router, entries are tried strictly in order and the first
// entry whose pattern and method match wins.
package routing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
)

var (
	// ErrNoRoute is wrapped by every RoutingError.
	ErrNoRoute = errors.New("no route matches")

	// ErrNoURL is returned when URL options cannot be turned into a path.
	ErrNoURL = errors.New("no route generates url")

	// ErrInvalidRoute is returned for entries that cannot be compiled.
	ErrInvalidRoute = errors.New("invalid route")
)

// ActionParam is the URL parameter naming the action for routes that do
// not fix one.
const ActionParam = "action"

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// RoutingError reports a request that no entry could serve.
type RoutingError struct {
	Method string
	Path   string
	Reason string
}

func (e *RoutingError) Error() string {
	msg := fmt.Sprintf("no route matches %s %s", e.Method, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrNoRoute) match.
func (e *RoutingError) Unwrap() error { return ErrNoRoute }

// Route is one entry of the table.
type Route struct {
	// Pattern is a chi routing pattern.
	Pattern string

	// Controller serves matching requests.
	Controller controller.Controller

	// Action names the controller action. Empty means the {action}
	// URL parameter decides.
	Action string

	// Methods restricts the entry to the given HTTP methods. Empty
	// matches any supported method.
	Methods []string
}

type entry struct {
	route Route
	mux   *chi.Mux
}

// RouteSet is an immutable, ordered routing table.
type RouteSet struct {
	entries []*entry
}

// NewRouteSet compiles routes in the given order.
func NewRouteSet(routes ...Route) (*RouteSet, error) {
	rs := &RouteSet{entries: make([]*entry, 0, len(routes))}
	for i, r := range routes {
		e, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, r.Pattern, err)
		}
		rs.entries = append(rs.entries, e)
	}
	return rs, nil
}

// MustRouteSet is like NewRouteSet but panics on error. Meant for tests
// and package-level tables.
func MustRouteSet(routes ...Route) *RouteSet {
	rs, err := NewRouteSet(routes...)
	if err != nil {
		panic(err)
	}
	return rs
}

func compile(r Route) (e *entry, err error) {
	if !strings.HasPrefix(r.Pattern, "/") {
		return nil, fmt.Errorf("%w: pattern must begin with '/'", ErrInvalidRoute)
	}
	if r.Controller == nil {
		return nil, fmt.Errorf("%w: controller is required", ErrInvalidRoute)
	}
	if r.Action == "" && !strings.Contains(r.Pattern, "{"+ActionParam) {
		return nil, fmt.Errorf("%w: no action and no {%s} parameter", ErrInvalidRoute, ActionParam)
	}
	methods := make([]string, 0, len(r.Methods))
	for _, m := range r.Methods {
		m = strings.ToUpper(m)
		if !supportedMethods[m] {
			return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidRoute, m)
		}
		methods = append(methods, m)
	}
	r.Methods = methods

	// chi reports malformed patterns by panicking.
	defer func() {
		if p := recover(); p != nil {
			e, err = nil, fmt.Errorf("%w: %v", ErrInvalidRoute, p)
		}
	}()

	mux := chi.NewRouter()
	matchOnly := http.NotFoundHandler()
	if len(methods) == 0 {
		mux.Handle(r.Pattern, matchOnly)
	} else {
		for _, m := range methods {
			mux.Method(m, r.Pattern, matchOnly)
		}
	}
	return &entry{route: r, mux: mux}, nil
}

// Len returns the number of entries.
func (rs *RouteSet) Len() int { return len(rs.entries) }

// Routes returns the entries in table order.
func (rs *RouteSet) Routes() []Route {
	out := make([]Route, len(rs.entries))
	for i, e := range rs.entries {
		out[i] = e.route
	}
	return out
}

// Match is a resolved request.
type Match struct {
	Route      Route
	ActionName string
	Action     controller.ActionFunc

	// RouteContext carries the URL parameters. The dispatcher installs it
	// so actions can call chi.URLParam.
	RouteContext *chi.Context
}

// Param returns a URL parameter captured by the pattern.
func (m *Match) Param(key string) string {
	return m.RouteContext.URLParam(key)
}

// Resolve finds the first entry matching method and path. The path must
// not carry a query string.
func (rs *RouteSet) Resolve(method, path string) (*Match, error) {
	method = strings.ToUpper(method)
	for _, e := range rs.entries {
		rctx := chi.NewRouteContext()
		if !e.mux.Match(rctx, method, path) {
			continue
		}

		name := e.route.Action
		if name == "" {
			name = rctx.URLParam(ActionParam)
		}
		action, ok := e.route.Controller.Actions()[name]
		if !ok || action == nil {
			return nil, &RoutingError{
				Method: method,
				Path:   path,
				Reason: fmt.Sprintf("controller %q has no action %q", e.route.Controller.Name(), name),
			}
		}
		return &Match{
			Route:        e.route,
			ActionName:   name,
			Action:       action,
			RouteContext: rctx,
		}, nil
	}
	return nil, &RoutingError{Method: method, Path: path}
}
