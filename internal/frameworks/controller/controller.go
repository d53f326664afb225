// Package controller defines the boundary between the dispatcher and the
// code under test: named controllers exposing named actions.
package controller

import (
	"log/slog"
	"net/http"
)

// ActionFunc handles one request. A returned error is handed back to the
// caller of the dispatch untouched; nothing recorded so far is kept.
type ActionFunc func(w http.ResponseWriter, r *http.Request) error

// Controller groups actions under a name that routes and URL options refer to.
type Controller interface {
	Name() string
	Actions() map[string]ActionFunc
	Close() error
}

// URLOptions describes a route abstractly: "controller" and "action" plus
// any path or query parameters.
type URLOptions map[string]string

// URLBuilder is implemented by controllers that can turn URL options into
// a path themselves. A session bound to such a controller asks it first.
type URLBuilder interface {
	URLFor(opts URLOptions) (string, error)
}

// NewController is the constructor function type for registered controllers.
type NewController func(conf map[string]any, log *slog.Logger) (Controller, error)

// Func adapts a bare function into a single-action controller. Handy in
// tests that need a route target without a full controller type.
func Func(name, action string, fn ActionFunc) Controller {
	return &funcController{name: name, actions: map[string]ActionFunc{action: fn}}
}

type funcController struct {
	name    string
	actions map[string]ActionFunc
}

func (f *funcController) Name() string                   { return f.name }
func (f *funcController) Actions() map[string]ActionFunc { return f.actions }
func (f *funcController) Close() error                   { return nil }
