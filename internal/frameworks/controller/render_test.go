package controller

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestText(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := Text(rec, http.StatusCreated, "Created"); err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Body.String() != "Created" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "Created")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRedirect_AbsoluteLocationAndBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/redirect", nil)
	r.Host = "www.example.com"
	rec := httptest.NewRecorder()

	if err := Redirect(rec, r, "/get"); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "http://www.example.com/get" {
		t.Errorf("Location = %q", loc)
	}
	want := `<html><body>You are being <a href="http://www.example.com/get">redirected</a>.</body></html>`
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestRedirect_HTTPSAndExternal(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Host = "secure.example.com"
	r.TLS = &tls.ConnectionState{}

	if got := AbsoluteURL(r, "/x"); got != "https://secure.example.com/x" {
		t.Errorf("AbsoluteURL = %q", got)
	}
	if got := AbsoluteURL(r, "http://elsewhere.test/y"); got != "http://elsewhere.test/y" {
		t.Errorf("AbsoluteURL = %q", got)
	}
	if got := AbsoluteURL(r, "//other.example.org/landing"); got != "https://other.example.org/landing" {
		t.Errorf("AbsoluteURL = %q", got)
	}

	rec := httptest.NewRecorder()
	if err := RedirectWithStatus(rec, r, "/x", http.StatusOK); err == nil {
		t.Error("expected error for non-3xx redirect status")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header map[string]string
		want   string
	}{
		{"default", "/get", nil, "html"},
		{"xhr marker", "/get", map[string]string{"X-Requested-With": "XMLHttpRequest"}, "js"},
		{"accept js first", "/get", map[string]string{"Accept": "text/javascript, text/html"}, "js"},
		{"accept json", "/get", map[string]string{"Accept": "application/json"}, "json"},
		{"browser accept", "/get", map[string]string{"Accept": "text/xml,application/xml,text/html;q=0.9"}, "html"},
		{"explicit param", "/get?format=xml", map[string]string{"X-Requested-With": "XMLHttpRequest"}, "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			if got := Format(r); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
