package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/sessionkit/internal/platform/appctx"
)

// accessLogRecorder captures log records with their attributes, including
// the ones attached through WithAttrs.
type accessLogRecorder struct {
	mu      *sync.Mutex
	records *[]accessLogRecord
	attrs   []slog.Attr
}

type accessLogRecord struct {
	message string
	attrs   map[string]any
}

func newAccessLogRecorder() *accessLogRecorder {
	return &accessLogRecorder{mu: &sync.Mutex{}, records: &[]accessLogRecord{}}
}

func (r *accessLogRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *accessLogRecorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attrs := make(map[string]any)
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	*r.records = append(*r.records, accessLogRecord{message: rec.Message, attrs: attrs})
	return nil
}

func (r *accessLogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	merged = append(merged, r.attrs...)
	merged = append(merged, attrs...)
	return &accessLogRecorder{mu: r.mu, records: r.records, attrs: merged}
}

func (r *accessLogRecorder) WithGroup(string) slog.Handler { return r }

func (r *accessLogRecorder) find(message string) *accessLogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range *r.records {
		if (*r.records)[i].message == message {
			rec := (*r.records)[i]
			return &rec
		}
	}
	return nil
}

func TestAccessLogMiddleware_RequiredFields(t *testing.T) {
	recorder := newAccessLogRecorder()
	logger := slog.New(recorder)

	handler := chi.Chain(
		chimw.RequestID,
		RequestLoggerMiddleware(logger),
		AccessLogMiddleware(logger),
	).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	})

	req := httptest.NewRequest(http.MethodPost, "/post?x=1", nil)
	req = req.WithContext(appctx.WithSessionID(req.Context(), "sess-1"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	accessLog := recorder.find("request")
	if accessLog == nil {
		t.Fatal("expected 'request' access log entry")
	}

	for _, field := range []string{"request_id", "session_id", "method", "path", "status", "bytes", "duration_ms"} {
		if _, ok := accessLog.attrs[field]; !ok {
			t.Errorf("missing required access log field %q", field)
		}
	}
	if accessLog.attrs["path"] != "/post" {
		t.Errorf("expected path without query, got %v", accessLog.attrs["path"])
	}
	if accessLog.attrs["session_id"] != "sess-1" {
		t.Errorf("expected session_id 'sess-1', got %v", accessLog.attrs["session_id"])
	}
	if status, ok := accessLog.attrs["status"].(int64); !ok || status != 201 {
		t.Errorf("expected status 201, got %v", accessLog.attrs["status"])
	}
	if n, ok := accessLog.attrs["bytes"].(int64); !ok || n != 5 {
		t.Errorf("expected bytes 5, got %v", accessLog.attrs["bytes"])
	}
}

func TestAccessLogMiddleware_FallbackWithoutContextLogger(t *testing.T) {
	recorder := newAccessLogRecorder()
	logger := slog.New(recorder)

	handler := AccessLogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cookie_monster", nil))

	accessLog := recorder.find("request")
	if accessLog == nil {
		t.Fatal("expected 'request' access log entry")
	}
	if accessLog.attrs["method"] != "GET" || accessLog.attrs["path"] != "/cookie_monster" {
		t.Errorf("fallback fields missing: %v", accessLog.attrs)
	}
}

func TestRequestLoggerMiddleware_AttachesLogger(t *testing.T) {
	recorder := newAccessLogRecorder()
	logger := slog.New(recorder)

	var sawLogger bool
	handler := chimw.RequestID(RequestLoggerMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = appctx.LoggerFromContext(r.Context())
		appctx.GetLogger(r.Context()).Info("inside")
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/get", nil))

	if !sawLogger {
		t.Fatal("expected request-scoped logger on the context")
	}
	rec := recorder.find("inside")
	if rec == nil {
		t.Fatal("expected handler log record")
	}
	if id, _ := rec.attrs["request_id"].(string); id == "" {
		t.Error("expected non-empty request_id on handler log record")
	}
}
