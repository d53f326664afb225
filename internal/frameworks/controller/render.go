package controller

import (
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Text writes body with the given status as text/html, the way a
// framework's plain-text render does.
func Text(w http.ResponseWriter, status int, body string) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	return err
}

// Redirect answers 302 Found. A path-only target is made absolute against
// the request's scheme and host, and the body carries the familiar
// "You are being redirected" page.
func Redirect(w http.ResponseWriter, r *http.Request, target string) error {
	return RedirectWithStatus(w, r, target, http.StatusFound)
}

// RedirectWithStatus is Redirect with an explicit 3xx status.
func RedirectWithStatus(w http.ResponseWriter, r *http.Request, target string, status int) error {
	if status < 300 || status > 399 {
		return fmt.Errorf("redirect status %d is not a 3xx code", status)
	}
	location := AbsoluteURL(r, target)
	w.Header().Set("Location", location)
	body := fmt.Sprintf("<html><body>You are being <a href=\"%s\">redirected</a>.</body></html>", html.EscapeString(location))
	return Text(w, status, body)
}

// AbsoluteURL resolves a path against the scheme and host of r, and a
// protocol-relative target against its scheme only. Targets that already
// carry a scheme are returned as is.
func AbsoluteURL(r *http.Request, target string) string {
	if !strings.HasPrefix(target, "/") {
		return target
	}
	scheme := "http"
	if r.TLS != nil || r.URL.Scheme == "https" {
		scheme = "https"
	}
	if strings.HasPrefix(target, "//") {
		return scheme + ":" + target
	}
	return scheme + "://" + r.Host + target
}

// Format picks the response format of a request: an explicit "format"
// parameter wins, then script-originated requests get "js", then the first
// Accept media type decides. Anything unrecognised is "html".
func Format(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return "js"
	}
	accept := r.Header.Get("Accept")
	first, _, _ := strings.Cut(accept, ",")
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(first))
	if err != nil {
		return "html"
	}
	switch mt {
	case "text/javascript", "application/javascript":
		return "js"
	case "application/json":
		return "json"
	default:
		return "html"
	}
}
