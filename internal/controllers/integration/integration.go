// Package integration provides a small controller with one action per
// behaviour a browser session has to cope with: plain and script
// responses, params, status codes, cookie churn and redirects.
package integration

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller/cfg"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/appctx"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
)

func init() {
	controller.MustRegister("integration", New)
}

// Config holds integration controller configuration.
type Config struct {
	// Mount is the path prefix the controller's routes live under.
	Mount string `mapstructure:"mount"`

	// RedirectTo is the action the redirect action points at.
	RedirectTo string `mapstructure:"redirect_to"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	c.Mount = strings.TrimSuffix(c.Mount, "/")
	if c.RedirectTo == "" {
		c.RedirectTo = "get"
	}
}

type ctrl struct {
	conf *Config
	log  *slog.Logger
}

// New creates the integration controller. Implements controller.NewController.
func New(m map[string]any, log *slog.Logger) (controller.Controller, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := cfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "controller", "integration", "unused_keys", unused)
	}
	return &ctrl{conf: &c, log: log}, nil
}

func (c *ctrl) Name() string { return "integration" }

func (c *ctrl) Close() error { return nil }

func (c *ctrl) Actions() map[string]controller.ActionFunc {
	return map[string]controller.ActionFunc{
		"get":             c.get,
		"get_with_params": c.getWithParams,
		"post":            c.post,
		"cookie_monster":  c.cookieMonster,
		"redirect":        c.redirect,
	}
}

// URLFor builds "<mount>/<action>" with the remaining options as query.
func (c *ctrl) URLFor(opts controller.URLOptions) (string, error) {
	action := opts["action"]
	if action == "" {
		return "", fmt.Errorf("integration: url options need an action")
	}
	if _, ok := c.Actions()[action]; !ok {
		return "", fmt.Errorf("integration: unknown action %q", action)
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		if k != "action" && k != "controller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		q.Set(k, opts[k])
	}

	path := c.conf.Mount + "/" + action
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return path, nil
}

func (c *ctrl) get(w http.ResponseWriter, r *http.Request) error {
	switch controller.Format(r) {
	case "js":
		return controller.Text(w, http.StatusOK, "JS OK")
	default:
		return controller.Text(w, http.StatusOK, "OK")
	}
}

func (c *ctrl) getWithParams(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	return controller.Text(w, http.StatusOK, "foo: "+r.Form.Get("foo"))
}

func (c *ctrl) post(w http.ResponseWriter, r *http.Request) error {
	return controller.Text(w, http.StatusCreated, "Created")
}

// cookieMonster eats cookie_1 and leaves a chocolate cookie_3.
func (c *ctrl) cookieMonster(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{Name: "cookie_1", Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: "cookie_3", Value: "chocolate", Path: "/"})
	appctx.GetLogger(r.Context()).Debug("cookies eaten", "cookie", "cookie_1")
	return controller.Text(w, http.StatusGone, "Gone")
}

func (c *ctrl) redirect(w http.ResponseWriter, r *http.Request) error {
	target, err := c.URLFor(controller.URLOptions{"action": c.conf.RedirectTo})
	if err != nil {
		return err
	}
	return controller.Redirect(w, r, target)
}
