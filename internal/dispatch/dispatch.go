// Package dispatch runs requests against a target in-process: no socket,
// no wire encoding of the response. A Request is turned into an
// *http.Request, served into a recorder and captured as a Response.
package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
)

// FormContentType is used for bodies built from params.
const FormContentType = "application/x-www-form-urlencoded"

// Dispatcher invokes a target synchronously and returns its response.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (*Response, error)
}

// Request describes one in-process request.
type Request struct {
	Method string

	// Path may carry a query string; Params are added to it or sent as
	// the body depending on Method.
	Path   string
	Params url.Values
	Header http.Header

	Host       string
	HTTPS      bool
	RemoteAddr string
}

// Response is the captured result of a dispatch. It is not modified after
// the dispatcher returns it.
type Response struct {
	Status        int
	StatusMessage string
	Header        http.Header
	Body          string

	// Request is the request as the target saw it.
	Request *http.Request

	// Controller served the request; nil for plain handlers.
	Controller controller.Controller
}

// StatusLine renders "<code> <message>", e.g. "200 OK".
func (r *Response) StatusLine() string {
	return strconv.Itoa(r.Status) + " " + r.StatusMessage
}

// IsRedirect reports whether the status is a 3xx code.
func (r *Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status <= 399
}

// bodyInQuery reports whether params travel in the query string.
func bodyInQuery(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// NewHTTPRequest builds the *http.Request a target will see.
func NewHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	host := req.Host
	if host == "" {
		host = "www.example.com"
	}
	scheme := "http"
	if req.HTTPS {
		scheme = "https"
	}

	u, err := url.Parse(req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", req.Path, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Scheme = scheme
	u.Host = host
	// RequestURI is the path as the caller wrote it; params only reach the query.
	requestURI := u.RequestURI()

	var form string
	if len(req.Params) > 0 {
		if bodyInQuery(method) {
			q := u.Query()
			for k, vs := range req.Params {
				for _, v := range vs {
					q.Add(k, v)
				}
			}
			u.RawQuery = q.Encode()
		} else {
			form = req.Params.Encode()
		}
	}

	r, err := http.NewRequestWithContext(ctx, method, u.String(), strings.NewReader(form))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if h := r.Header.Get("Host"); h != "" {
		r.Host = h
		r.Header.Del("Host")
	}
	if form != "" && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", FormContentType)
	}

	// Shape the request like one received by a server.
	r.RequestURI = requestURI
	r.RemoteAddr = req.RemoteAddr
	if r.RemoteAddr == "" {
		r.RemoteAddr = "127.0.0.1:0"
	} else if !strings.Contains(r.RemoteAddr, ":") {
		r.RemoteAddr += ":0"
	}
	if req.HTTPS {
		r.TLS = &tls.ConnectionState{Version: tls.VersionTLS13, HandshakeComplete: true, ServerName: host}
	}
	return r, nil
}

// capture turns a recorder into a Response.
func capture(rec *httptest.ResponseRecorder, r *http.Request, c controller.Controller) *Response {
	res := rec.Result()
	body := rec.Body.String()
	if r.Method == http.MethodHead {
		body = ""
	}
	return &Response{
		Status:        res.StatusCode,
		StatusMessage: http.StatusText(res.StatusCode),
		Header:        res.Header.Clone(),
		Body:          body,
		Request:       r,
		Controller:    c,
	}
}
