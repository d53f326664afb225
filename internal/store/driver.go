// Package store persists session transcripts: the ordered exchanges a
// session performed. Drivers register themselves by name.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init initializes the driver (create tables, load data, etc).
	Init(ctx context.Context) error

	// Close releases resources held by the driver.
	Close() error

	// Name returns the driver name (memory, json, sqlite).
	Name() string
}

// TranscriptStore records and reads back exchanges.
type TranscriptStore interface {
	// AppendExchange stores a new exchange. IDs must be unique.
	AppendExchange(ctx context.Context, ex *Exchange) error

	// GetExchange returns one exchange by id.
	GetExchange(ctx context.Context, id string) (*Exchange, error)

	// ListExchanges returns the exchanges of a session ordered by Seq.
	ListExchanges(ctx context.Context, sessionID string) ([]*Exchange, error)

	// ListSessions returns the ids of all sessions with exchanges, sorted.
	ListSessions(ctx context.Context) ([]string, error)

	// DeleteSession removes all exchanges of a session.
	// Returns ErrNotFound when the session has none.
	DeleteSession(ctx context.Context, sessionID string) error
}

// Exchange is one request/response pair performed by a session.
type Exchange struct {
	ID              string `json:"id" gorm:"primaryKey"`
	SessionID       string `json:"session_id" gorm:"index"`
	Seq             int    `json:"seq"`
	Method          string `json:"method"`
	URL             string `json:"url"`
	Status          int    `json:"status"`
	RequestHeaders  string `json:"request_headers"`  // JSON object
	ResponseHeaders string `json:"response_headers"` // JSON object
	Body            string `json:"body"`
	CreatedAt       int64  `json:"created_at"`
}

// Redirected reports whether the exchange answered with a 3xx status.
func (e *Exchange) Redirected() bool {
	return e.Status >= 300 && e.Status <= 399
}

// Time returns CreatedAt as a time.
func (e *Exchange) Time() time.Time {
	return time.Unix(0, e.CreatedAt)
}

// EncodeHeader renders a header for the RequestHeaders and
// ResponseHeaders columns.
func EncodeHeader(h http.Header) string {
	if len(h) == 0 {
		return "{}"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeHeader parses a header column back.
func DecodeHeader(s string) (http.Header, error) {
	h := http.Header{}
	if s == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("invalid header snapshot: %w", err)
	}
	return h, nil
}
