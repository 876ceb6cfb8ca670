// Package testutil provides shared test helpers for setting up stores and repositories.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/markit/internal/persistence"
	"github.com/starford/markit/internal/repository"
	"github.com/starford/markit/internal/storage"
)

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestStore creates a file store rooted in a temporary directory.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestSQLite creates a temporary SQLite store that is automatically closed.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "markit-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepository returns a repository seeded from an empty file store, along with
// the adapter it saves through.
func TestRepository(t *testing.T, opts ...repository.Option) (*repository.Repository, *persistence.Adapter) {
	t.Helper()
	adapter := persistence.New(TestStore(t), persistence.DefaultKey, Logger())
	repo := repository.New(adapter, opts...)
	repo.ReplaceAll(adapter.Load().Notes)
	return repo, adapter
}

// Eventually polls fn until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error(msg)
}
