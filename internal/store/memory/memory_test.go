package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
	"github.com/MahdiBaghbani/sessionkit/internal/store/memory"
	"github.com/MahdiBaghbani/sessionkit/internal/store/testutil"
)

func TestMemoryDriver(t *testing.T) {
	testutil.RunDriverTests(t, "memory", &store.DriverConfig{Driver: "memory"})
}

func TestMemoryDriverClosed(t *testing.T) {
	ctx := context.Background()
	d := memory.New()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	if err := d.AppendExchange(ctx, testutil.TestExchange("s", 1)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := d.ListSessions(ctx); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryDriverReturnsCopies(t *testing.T) {
	ctx := context.Background()
	d := memory.New()
	ex := testutil.TestExchange("s", 1)
	if err := d.AppendExchange(ctx, ex); err != nil {
		t.Fatal(err)
	}

	ex.Body = "mutated"
	got, err := d.GetExchange(ctx, ex.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "OK" {
		t.Errorf("stored exchange changed through caller pointer: %q", got.Body)
	}
}
