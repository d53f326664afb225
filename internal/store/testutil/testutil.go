// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
)

// TestExchange creates a test exchange for a session.
func TestExchange(sessionID string, seq int) *store.Exchange {
	return &store.Exchange{
		ID:              fmt.Sprintf("%s-%03d", sessionID, seq),
		SessionID:       sessionID,
		Seq:             seq,
		Method:          "GET",
		URL:             "http://www.example.com/get",
		Status:          200,
		RequestHeaders:  `{"Accept":["text/html"]}`,
		ResponseHeaders: `{"Content-Type":["text/html; charset=utf-8"]}`,
		Body:            "OK",
		CreatedAt:       time.Now().UnixNano(),
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}

	if driver.Name() != driverName {
		t.Errorf("expected driver name %q, got %q", driverName, driver.Name())
	}

	ts, ok := driver.(store.TranscriptStore)
	if !ok {
		t.Fatalf("%s driver does not implement TranscriptStore", driverName)
	}

	t.Run("ExchangeLifecycle", func(t *testing.T) {
		TestExchangeLifecycle(t, ctx, ts)
	})

	t.Run("ExchangesOrderedBySeq", func(t *testing.T) {
		TestExchangesOrderedBySeq(t, ctx, ts)
	})

	t.Run("SessionsIsolated", func(t *testing.T) {
		TestSessionsIsolated(t, ctx, ts)
	})
}

// TestExchangeLifecycle covers append, get, duplicate and delete.
func TestExchangeLifecycle(t *testing.T, ctx context.Context, s store.TranscriptStore) {
	ex := TestExchange("lifecycle", 1)

	if err := s.AppendExchange(ctx, ex); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	got, err := s.GetExchange(ctx, ex.ID)
	if err != nil {
		t.Fatalf("GetExchange failed: %v", err)
	}
	if got.URL != ex.URL || got.Status != ex.Status || got.Body != ex.Body {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, ex)
	}

	if err := s.AppendExchange(ctx, ex); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on duplicate id, got %v", err)
	}

	if _, err := s.GetExchange(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteSession(ctx, "lifecycle"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := s.GetExchange(ctx, ex.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSession(ctx, "lifecycle"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting an empty session, got %v", err)
	}
}

// TestExchangesOrderedBySeq appends out of order and reads back in order.
func TestExchangesOrderedBySeq(t *testing.T, ctx context.Context, s store.TranscriptStore) {
	for _, seq := range []int{3, 1, 2} {
		if err := s.AppendExchange(ctx, TestExchange("ordered", seq)); err != nil {
			t.Fatalf("AppendExchange(%d) failed: %v", seq, err)
		}
	}

	list, err := s.ListExchanges(ctx, "ordered")
	if err != nil {
		t.Fatalf("ListExchanges failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 exchanges, got %d", len(list))
	}
	for i, ex := range list {
		if ex.Seq != i+1 {
			t.Errorf("position %d: expected seq %d, got %d", i, i+1, ex.Seq)
		}
	}
}

// TestSessionsIsolated verifies sessions do not see each other's exchanges.
func TestSessionsIsolated(t *testing.T, ctx context.Context, s store.TranscriptStore) {
	if err := s.AppendExchange(ctx, TestExchange("alice", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendExchange(ctx, TestExchange("bob", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendExchange(ctx, TestExchange("bob", 2)); err != nil {
		t.Fatal(err)
	}

	alice, err := s.ListExchanges(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(alice) != 1 {
		t.Errorf("expected 1 exchange for alice, got %d", len(alice))
	}

	none, err := s.ListExchanges(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no exchanges for unknown session, got %d", len(none))
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, id := range sessions {
		found[id] = true
	}
	if !found["alice"] || !found["bob"] {
		t.Errorf("expected alice and bob in %v", sessions)
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1] > sessions[i] {
			t.Errorf("sessions not sorted: %v", sessions)
		}
	}
}
