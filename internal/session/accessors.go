package session

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/MahdiBaghbani/sessionkit/internal/dispatch"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/jar"
)

// ErrNoResponse is returned by accessors that need a response before the
// first request.
var ErrNoResponse = errors.New("no request has been made")

// Response returns the last response, or nil before the first request.
func (s *Session) Response() *dispatch.Response { return s.response }

// Request returns the last request as the target saw it.
func (s *Session) Request() *http.Request {
	if s.response == nil {
		return nil
	}
	return s.response.Request
}

// Status returns the last status code, 0 before the first request.
func (s *Session) Status() int {
	if s.response == nil {
		return 0
	}
	return s.response.Status
}

// StatusMessage returns the reason phrase of the last status.
func (s *Session) StatusMessage() string {
	if s.response == nil {
		return ""
	}
	return s.response.StatusMessage
}

// Header returns the last response headers.
func (s *Session) Header() http.Header {
	if s.response == nil {
		return nil
	}
	return s.response.Header
}

// Body returns the last response body.
func (s *Session) Body() string {
	if s.response == nil {
		return ""
	}
	return s.response.Body
}

// Controller returns the controller that served the last response.
func (s *Session) Controller() controller.Controller {
	if s.response == nil {
		return nil
	}
	return s.response.Controller
}

// Cookies returns a copy of the jar as name to value.
func (s *Session) Cookies() map[string]string { return s.jar.Snapshot() }

// CookieList returns the jar entries sorted by name.
func (s *Session) CookieList() []jar.Cookie { return s.jar.Cookies() }

// SetCookie pre-sets a cookie sent with subsequent requests.
func (s *Session) SetCookie(name, value string) { s.jar.Set(name, value) }

// RequestCount returns the number of completed requests.
func (s *Session) RequestCount() int { return s.requestCount }

// HTMLDocument parses the last response body as HTML.
func (s *Session) HTMLDocument() (*html.Node, error) {
	if s.response == nil {
		return nil, ErrNoResponse
	}
	return html.Parse(strings.NewReader(s.response.Body))
}
