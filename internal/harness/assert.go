package harness

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/session"
)

// Response kinds accepted by AssertResponse and StatusMatches.
const (
	KindSuccess  = "success"
	KindRedirect = "redirect"
	KindMissing  = "missing"
	KindError    = "error"
)

// statusNames maps snake_case status names (ok, created, found, gone,
// not_found, ...) to their codes.
var statusNames = func() map[string]int {
	m := make(map[string]int)
	for code := 100; code < 600; code++ {
		text := http.StatusText(code)
		if text == "" {
			continue
		}
		name := strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(strings.ToLower(text))
		m[name] = code
	}
	return m
}()

// StatusMatches reports whether status fits want, which is a numeric
// status, a status name such as "ok" or "gone", or one of the response
// kinds.
func StatusMatches(status int, want string) (bool, error) {
	switch want {
	case KindSuccess:
		return status >= 200 && status <= 299, nil
	case KindRedirect:
		return status >= 300 && status <= 399, nil
	case KindMissing:
		return status == 404, nil
	case KindError:
		return status >= 500 && status <= 599, nil
	}
	if code, ok := statusNames[want]; ok {
		return status == code, nil
	}
	code, err := strconv.Atoi(want)
	if err != nil {
		return false, fmt.Errorf("unknown response kind %q", want)
	}
	return status == code, nil
}

// AssertResponse checks the last response of s. want is an int status or
// a response kind.
func AssertResponse(t testing.TB, s *session.Session, want any) {
	t.Helper()
	if s.Response() == nil {
		t.Errorf("expected response %v, but no request was made", want)
		return
	}

	var expected string
	switch w := want.(type) {
	case int:
		expected = strconv.Itoa(w)
	case string:
		expected = w
	default:
		t.Fatalf("AssertResponse: unsupported expectation %T", want)
		return
	}

	ok, err := StatusMatches(s.Status(), expected)
	if err != nil {
		t.Fatalf("AssertResponse: %v", err)
		return
	}
	if !ok {
		t.Errorf("expected response to be %s, got %s", expected, s.Response().StatusLine())
	}
}

// RedirectTarget returns the Location of the last response and target,
// both resolved to absolute URLs on the request's host.
func RedirectTarget(s *session.Session, target string) (want, got string) {
	want, got = target, s.Header().Get("Location")
	if r := s.Request(); r != nil {
		want = controller.AbsoluteURL(r, want)
		got = controller.AbsoluteURL(r, got)
	}
	return want, got
}

// AssertRedirectedTo checks that the last response redirects to target.
// Path-only values on either side are compared as absolute URLs on the
// request's host.
func AssertRedirectedTo(t testing.TB, s *session.Session, target string) {
	t.Helper()
	if !s.IsRedirect() {
		t.Errorf("expected a redirect to %s, got status %d", target, s.Status())
		return
	}
	if want, got := RedirectTarget(s, target); got != want {
		t.Errorf("expected redirect to %s, got %s", want, got)
	}
}
