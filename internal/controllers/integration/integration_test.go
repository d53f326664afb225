package integration_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MahdiBaghbani/sessionkit/internal/controllers/integration"
	"github.com/MahdiBaghbani/sessionkit/internal/dispatch"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
	"github.com/MahdiBaghbani/sessionkit/internal/session"
)

func newSession(t *testing.T, conf map[string]any) *session.Session {
	t.Helper()
	c, err := integration.New(conf, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rs := routing.MustRouteSet(routing.Route{Pattern: "/{action}", Controller: c})
	return session.New(dispatch.NewRouteDispatcher(dispatch.Static(rs), nil), session.DefaultOptions())
}

func TestRegistered(t *testing.T) {
	if controller.Get("integration") == nil {
		t.Fatal("integration controller not registered")
	}
}

func TestGet_RespondsByFormat(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()

	if _, err := s.Get(ctx, "/get", nil, nil); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "OK" || s.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("unexpected html response %q %q", s.Body(), s.Header().Get("Content-Type"))
	}

	if _, err := s.XHR(ctx, "GET", "/get", nil, nil); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "JS OK" {
		t.Errorf("expected JS OK, got %q", s.Body())
	}
}

func TestGetWithParams(t *testing.T) {
	s := newSession(t, nil)
	ctx := context.Background()

	if _, err := s.Get(ctx, "/get_with_params?foo=bar", nil, nil); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "foo: bar" {
		t.Errorf("query: got %q", s.Body())
	}

	if _, err := s.Get(ctx, "/get_with_params", url.Values{"foo": {"baz"}}, nil); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "foo: baz" {
		t.Errorf("params: got %q", s.Body())
	}
	if s.Request().URL.RawQuery != "foo=baz" {
		t.Errorf("GET params should travel in the query, got %q", s.Request().URL.RawQuery)
	}

	if _, err := s.Post(ctx, "/get_with_params", url.Values{"foo": {"form"}}, nil); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "foo: form" {
		t.Errorf("form: got %q", s.Body())
	}
}

func TestPost(t *testing.T) {
	s := newSession(t, nil)
	status, err := s.Post(context.Background(), "/post", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusCreated || s.StatusMessage() != "Created" || s.Body() != "Created" {
		t.Errorf("unexpected response %d %q %q", status, s.StatusMessage(), s.Body())
	}
}

func TestCookieMonster(t *testing.T) {
	s := newSession(t, nil)
	s.SetCookie("cookie_1", "sugar")
	s.SetCookie("cookie_2", "oatmeal")

	status, err := s.Get(context.Background(), "/cookie_monster", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusGone || s.Body() != "Gone" {
		t.Errorf("unexpected response %d %q", status, s.Body())
	}

	want := map[string]string{"cookie_1": "", "cookie_2": "oatmeal", "cookie_3": "chocolate"}
	if diff := cmp.Diff(want, s.Cookies()); diff != "" {
		t.Errorf("cookies mismatch (-want +got):\n%s", diff)
	}
}

func TestRedirect(t *testing.T) {
	s := newSession(t, map[string]any{"mount": ""})
	status, err := s.Get(context.Background(), "/redirect", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusFound || !s.IsRedirect() {
		t.Fatalf("expected 302, got %d", status)
	}
	if loc := s.Header().Get("Location"); loc != "http://www.example.com/get" {
		t.Errorf("unexpected Location %q", loc)
	}
	if !strings.Contains(s.Body(), `<a href="http://www.example.com/get">redirected</a>`) {
		t.Errorf("unexpected redirect body %q", s.Body())
	}

	if _, err := s.FollowRedirect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Body() != "OK" {
		t.Errorf("expected OK after follow, got %q", s.Body())
	}
}

func TestURLFor(t *testing.T) {
	c, err := integration.New(map[string]any{"mount": "/tests/"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b := c.(controller.URLBuilder)

	got, err := b.URLFor(controller.URLOptions{"controller": "integration", "action": "get_with_params", "foo": "a b"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tests/get_with_params?foo=a+b" {
		t.Errorf("URLFor() = %q", got)
	}

	if _, err := b.URLFor(controller.URLOptions{"action": "nope"}); err == nil {
		t.Error("expected error for unknown action")
	}
}
