package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/raist/go-controller/internal/commitment"
	"github.com/danielpatrickdp/raist/go-controller/internal/config"
	"github.com/danielpatrickdp/raist/go-controller/internal/engine"
	"github.com/danielpatrickdp/raist/go-controller/internal/journal"
	"github.com/danielpatrickdp/raist/go-controller/internal/producer"
)

// journalOneCycle runs one accepted cycle under the default config and
// returns the journal path.
func journalOneCycle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	cfg := config.DefaultConfig().ToEngine()
	e, err := engine.New(commitment.NewStore(cfg.Dimension), producer.Canned{}, cfg, engine.WithObserver(j))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	res, err := e.RunCycle(context.Background(), "which ethics apply", cfg.Ideal)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if res.NewRecordID == "" {
		t.Fatal("expected an accepted commitment")
	}
	return path
}

func TestVerifyModeAcceptsJournal(t *testing.T) {
	path := journalOneCycle(t)
	if code := runVerifyMode(path, ""); code != 0 {
		t.Fatalf("verify exit code = %d, want 0", code)
	}
}

func TestVerifyModeFlagsTamperedAlignment(t *testing.T) {
	path := journalOneCycle(t)

	j, err := journal.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := j.DB().Exec(`UPDATE cycles SET alignment = 0.5`); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	j.Close()

	if code := runVerifyMode(path, ""); code != 1 {
		t.Fatalf("verify exit code = %d, want 1", code)
	}
}

func TestVerifyModeMissingJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.db")
	if code := runVerifyMode(path, ""); code != 2 {
		t.Fatalf("verify exit code = %d, want 2", code)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("verify created %s", path)
	}
}

func TestFixtureModeReferenceScenario(t *testing.T) {
	if code := runFixtureMode(filepath.Join("..", "..", "internal", "replay", "testdata")); code != 0 {
		t.Fatalf("fixture exit code = %d, want 0", code)
	}
}
