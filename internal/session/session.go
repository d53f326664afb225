// Package session simulates one browser-like client against a dispatcher.
// A Session owns a cookie jar, the last response and a request counter;
// every verb call runs synchronously in-process.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/sessionkit/internal/dispatch"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/jar"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/appctx"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/hostport"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

const (
	DefaultHost         = "www.example.com"
	DefaultRemoteAddr   = "127.0.0.1"
	DefaultAccept       = "text/xml,application/xml,application/xhtml+xml,text/html;q=0.9,text/plain;q=0.8,image/png,*/*;q=0.5"
	DefaultMaxRedirects = 20

	// XHRAccept is sent by XMLHTTPRequest when the caller set no Accept.
	XHRAccept = "text/javascript, text/html, application/xml, text/xml, */*"
)

var (
	// ErrNoRedirect is returned by FollowRedirect when the last response
	// is not a redirect.
	ErrNoRedirect = errors.New("last response is not a redirect")

	// ErrTooManyRedirects is returned when a redirect chain exceeds
	// Options.MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// URLRewriter turns URL options into a path. *routing.RouteSet implements it.
type URLRewriter interface {
	Rewrite(opts controller.URLOptions) (string, error)
}

// Recorder receives every completed exchange.
type Recorder interface {
	AppendExchange(ctx context.Context, ex *store.Exchange) error
}

// Options configures a new Session.
type Options struct {
	Host       string
	HTTPS      bool
	RemoteAddr string

	// Accept is added to requests that carry no Accept header.
	Accept string

	// MaxRedirects bounds RequestViaRedirect; 0 means unlimited.
	MaxRedirects int

	Rewriter URLRewriter
	Recorder Recorder
	Logger   *slog.Logger
}

// DefaultOptions returns the options used by a plain browser session.
func DefaultOptions() Options {
	return Options{
		Host:         DefaultHost,
		RemoteAddr:   DefaultRemoteAddr,
		Accept:       DefaultAccept,
		MaxRedirects: DefaultMaxRedirects,
	}
}

// Session is a simulated client. It is not safe for concurrent use.
type Session struct {
	id         string
	dispatcher dispatch.Dispatcher
	jar        *jar.Jar
	baseLog    *slog.Logger
	log        *slog.Logger

	host         string
	https        bool
	remoteAddr   string
	accept       string
	maxRedirects int
	rewriter     URLRewriter
	recorder     Recorder

	response     *dispatch.Response
	requestCount int
}

// New creates a session with an empty jar. Empty string options fall back
// to their defaults.
func New(d dispatch.Dispatcher, opts Options) *Session {
	s := &Session{
		dispatcher:   d,
		jar:          jar.New(),
		host:         opts.Host,
		https:        opts.HTTPS,
		remoteAddr:   opts.RemoteAddr,
		accept:       opts.Accept,
		maxRedirects: opts.MaxRedirects,
		rewriter:     opts.Rewriter,
		recorder:     opts.Recorder,
	}
	if s.host == "" {
		s.host = DefaultHost
	}
	if s.remoteAddr == "" {
		s.remoteAddr = DefaultRemoteAddr
	}
	if s.accept == "" {
		s.accept = DefaultAccept
	}
	s.baseLog = logutil.NoopIfNil(opts.Logger)
	s.id = newID()
	s.log = s.baseLog.With("session_id", s.id)
	return s
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Reset clears the jar, the last response and the counter. Host, scheme
// and collaborators are kept; the session gets a new id.
func (s *Session) Reset() {
	s.jar = jar.New()
	s.response = nil
	s.requestCount = 0
	s.id = newID()
	s.log = s.baseLog.With("session_id", s.id)
}

// ID identifies the session in logs and transcripts.
func (s *Session) ID() string { return s.id }

// SetHost changes the host used by subsequent requests.
func (s *Session) SetHost(host string) { s.host = host }

// Host returns the host used for requests.
func (s *Session) Host() string { return s.host }

// SetHTTPS switches subsequent requests to https (or back to http).
func (s *Session) SetHTTPS(on bool) { s.https = on }

// HTTPS reports whether requests use the https scheme.
func (s *Session) HTTPS() bool { return s.https }

// Get issues a GET request.
func (s *Session) Get(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodGet, path, params, headers)
}

// Post issues a POST request.
func (s *Session) Post(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodPost, path, params, headers)
}

// Put issues a PUT request.
func (s *Session) Put(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodPut, path, params, headers)
}

// Patch issues a PATCH request.
func (s *Session) Patch(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodPatch, path, params, headers)
}

// Delete issues a DELETE request.
func (s *Session) Delete(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodDelete, path, params, headers)
}

// Head issues a HEAD request.
func (s *Session) Head(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.Process(ctx, http.MethodHead, path, params, headers)
}

// Process dispatches one request and returns its status. The jar is sent
// as the Cookie header unless the caller supplied one. On error the
// session is left exactly as it was.
func (s *Session) Process(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	method = strings.ToUpper(method)

	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", s.accept)
	}
	if h.Get("Cookie") == "" {
		if c := s.jar.Header(); c != "" {
			h.Set("Cookie", c)
		}
	}

	req := &dispatch.Request{
		Method:     method,
		Path:       path,
		Params:     params,
		Header:     h,
		Host:       s.host,
		HTTPS:      s.https,
		RemoteAddr: s.remoteAddr,
	}

	ctx = appctx.WithSessionID(ctx, s.id)
	res, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		s.log.Debug("dispatch failed", "method", method, "path", path, "error", err)
		return 0, err
	}

	s.jar.Apply(res.Header)
	s.response = res
	s.requestCount++
	s.record(ctx, method, res)
	return res.Status, nil
}

func (s *Session) record(ctx context.Context, method string, res *dispatch.Response) {
	if s.recorder == nil {
		return
	}
	ex := &store.Exchange{
		ID:              newID(),
		SessionID:       s.id,
		Seq:             s.requestCount,
		Method:          method,
		Status:          res.Status,
		ResponseHeaders: store.EncodeHeader(res.Header),
		Body:            res.Body,
		CreatedAt:       time.Now().UnixNano(),
	}
	if res.Request != nil {
		ex.URL = res.Request.URL.String()
		ex.RequestHeaders = store.EncodeHeader(res.Request.Header)
	}
	if err := s.recorder.AppendExchange(ctx, ex); err != nil {
		s.log.Warn("failed to record exchange", "seq", ex.Seq, "error", err)
	}
}

// IsRedirect reports whether the last response has a 3xx status.
func (s *Session) IsRedirect() bool {
	return s.response != nil && s.response.IsRedirect()
}

// FollowRedirect issues a GET to the Location of the last response. A
// Location naming a host also moves the session to that host, and to its
// scheme when one is given.
func (s *Session) FollowRedirect(ctx context.Context) (int, error) {
	if !s.IsRedirect() {
		return 0, ErrNoRedirect
	}
	loc := s.response.Header.Get("Location")
	if loc == "" {
		return 0, fmt.Errorf("%w: missing Location header", ErrNoRedirect)
	}
	u, err := url.Parse(loc)
	if err != nil {
		return 0, fmt.Errorf("invalid Location %q: %w", loc, err)
	}

	host, https := s.host, s.https
	if u.Host != "" {
		// A protocol-relative Location keeps the current scheme.
		if u.Scheme != "" {
			https = u.Scheme == "https"
		}
		if host, err = hostport.Canonical(u.Host, https); err != nil {
			return 0, fmt.Errorf("invalid Location %q: %w", loc, err)
		}
	} else if s.response.Request != nil {
		u = s.response.Request.URL.ResolveReference(u)
	}

	prevHost, prevHTTPS := s.host, s.https
	s.host, s.https = host, https
	status, err := s.Get(ctx, u.RequestURI(), nil, nil)
	if err != nil {
		s.host, s.https = prevHost, prevHTTPS
		return 0, err
	}
	return status, nil
}

// RequestViaRedirect performs a request with the given verb and then
// follows redirects with GET until a non-redirect response arrives.
func (s *Session) RequestViaRedirect(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	status, err := s.Process(ctx, method, path, params, headers)
	if err != nil {
		return 0, err
	}
	for hops := 0; s.IsRedirect(); hops++ {
		if s.maxRedirects > 0 && hops >= s.maxRedirects {
			return status, fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, hops)
		}
		if status, err = s.FollowRedirect(ctx); err != nil {
			return 0, err
		}
	}
	return status, nil
}

// GetViaRedirect is RequestViaRedirect with GET.
func (s *Session) GetViaRedirect(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.RequestViaRedirect(ctx, http.MethodGet, path, params, headers)
}

// PostViaRedirect is RequestViaRedirect with POST.
func (s *Session) PostViaRedirect(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.RequestViaRedirect(ctx, http.MethodPost, path, params, headers)
}

// PutViaRedirect is RequestViaRedirect with PUT.
func (s *Session) PutViaRedirect(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.RequestViaRedirect(ctx, http.MethodPut, path, params, headers)
}

// DeleteViaRedirect is RequestViaRedirect with DELETE.
func (s *Session) DeleteViaRedirect(ctx context.Context, path string, params url.Values, headers http.Header) (int, error) {
	return s.RequestViaRedirect(ctx, http.MethodDelete, path, params, headers)
}

// XMLHTTPRequest performs a request marked as script-originated. The
// caller's Accept header, if any, is preserved.
func (s *Session) XMLHTTPRequest(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("X-Requested-With", "XMLHttpRequest")
	if h.Get("Accept") == "" {
		h.Set("Accept", XHRAccept)
	}
	return s.Process(ctx, method, path, params, h)
}

// XHR is shorthand for XMLHTTPRequest.
func (s *Session) XHR(ctx context.Context, method, path string, params url.Values, headers http.Header) (int, error) {
	return s.XMLHTTPRequest(ctx, method, path, params, headers)
}

// URLFor resolves URL options to a path. The controller that served the
// last response is asked first when it can build URLs; otherwise the
// session's rewriter is used. A missing "controller" option defaults to
// the last controller's name.
func (s *Session) URLFor(opts controller.URLOptions) (string, error) {
	c := s.Controller()
	if c != nil && opts["controller"] == "" {
		merged := make(controller.URLOptions, len(opts)+1)
		for k, v := range opts {
			merged[k] = v
		}
		merged["controller"] = c.Name()
		opts = merged
	}
	if b, ok := c.(controller.URLBuilder); ok {
		return b.URLFor(opts)
	}
	if s.rewriter == nil {
		return "", fmt.Errorf("%w: session has no url rewriter", routing.ErrNoURL)
	}
	return s.rewriter.Rewrite(opts)
}
