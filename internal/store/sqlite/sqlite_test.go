package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MahdiBaghbani/sessionkit/internal/store"
	_ "github.com/MahdiBaghbani/sessionkit/internal/store/sqlite"
	"github.com/MahdiBaghbani/sessionkit/internal/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	testutil.RunDriverTests(t, "sqlite", cfg)

	if _, err := os.Stat(filepath.Join(tempDir, "transcripts.db")); os.IsNotExist(err) {
		t.Error("transcripts.db not created")
	}
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}

	ts := driver.(store.TranscriptStore)
	for seq := 1; seq <= 2; seq++ {
		if err := ts.AppendExchange(ctx, testutil.TestExchange("restart", seq)); err != nil {
			t.Fatal(err)
		}
	}
	driver.Close()

	driver2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver2.Close()

	list, err := driver2.(store.TranscriptStore).ListExchanges(ctx, "restart")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 exchanges after restart, got %d", len(list))
	}
	if list[0].Seq != 1 || list[1].Seq != 2 {
		t.Errorf("unexpected order after restart: %d, %d", list[0].Seq, list[1].Seq)
	}
}
