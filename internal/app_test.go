package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/repository"
	"github.com/starford/markit/internal/storage"
)

func testConfig(t *testing.T, driver string) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Store.Driver = driver
	cfg.Store.Path = filepath.Join(t.TempDir(), "data")
	if driver == StoreDriverSQLite {
		cfg.Store.Path = filepath.Join(t.TempDir(), "markit.db")
	}
	return cfg
}

func openTestApp(t *testing.T, cfg *Config, opts ...Option) *App {
	t.Helper()
	all := append([]Option{WithConfig(cfg), WithLogWriter(io.Discard)}, opts...)
	app, err := Open(all...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestOpen_RequiresConfig(t *testing.T) {
	if _, err := Open(); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestOpen_ReloadsPersistedNotes(t *testing.T) {
	for _, driver := range []string{StoreDriverFile, StoreDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)

			app := openTestApp(t, cfg)
			n, err := app.Repo.Create()
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := app.Repo.Update(n.ID, models.ContentPatch("# Hi")); err != nil {
				t.Fatal(err)
			}
			if err := app.Close(); err != nil {
				t.Fatal(err)
			}

			again := openTestApp(t, cfg)
			got, ok := again.Repo.Get(n.ID)
			if !ok || got.Content != "# Hi" {
				t.Errorf("reloaded = %+v, found=%v", got, ok)
			}
		})
	}
}

func TestOpen_CorruptStoreIsQuarantinedNotOverwritten(t *testing.T) {
	cfg := testConfig(t, StoreDriverFile)
	if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	blob := filepath.Join(cfg.Store.Path, cfg.Store.Key+".json")
	if err := os.WriteFile(blob, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	app := openTestApp(t, cfg)
	if app.Repo.Len() != 0 {
		t.Errorf("len = %d, want 0", app.Repo.Len())
	}
	keys, err := app.Adapter.Quarantined()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Fatalf("quarantined = %v", keys)
	}
	data, err := app.Store.Read(keys[0])
	if err != nil || string(data) != "{not json" {
		t.Errorf("quarantined copy = %q, %v", data, err)
	}
}

func TestOpen_UnreadableStoreFails(t *testing.T) {
	cfg := testConfig(t, StoreDriverFile)
	// A directory where the blob should be: reads fail with something other than not-exist.
	blob := filepath.Join(cfg.Store.Path, cfg.Store.Key+".json")
	if err := os.MkdirAll(blob, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := Open(WithConfig(cfg), WithLogWriter(io.Discard))
	if !errors.Is(err, apperr.ErrUnreadable) {
		t.Fatalf("Open err = %v, want ErrUnreadable", err)
	}
	if info, err := os.Stat(blob); err != nil || !info.IsDir() {
		t.Errorf("store entry touched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Store.Path, storage.LockFileName)); !os.IsNotExist(err) {
		t.Errorf("lock left behind after failed open: %v", err)
	}
}

func TestOpen_SecondWriterRefused(t *testing.T) {
	for _, driver := range []string{StoreDriverFile, StoreDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			server := openTestApp(t, cfg)
			for i := 0; i < 3; i++ {
				if _, err := server.Repo.Create(); err != nil {
					t.Fatal(err)
				}
			}

			if _, err := Open(WithConfig(cfg), WithLogWriter(io.Discard)); !errors.Is(err, apperr.ErrLocked) {
				t.Fatalf("second writer err = %v, want ErrLocked", err)
			}

			reader := openTestApp(t, cfg, WithReadOnly())
			if reader.Repo.Len() != 3 {
				t.Errorf("reader sees %d notes, want 3", reader.Repo.Len())
			}
			if _, err := reader.Repo.Create(); !errors.Is(err, apperr.ErrReadOnly) {
				t.Errorf("reader Create err = %v, want ErrReadOnly", err)
			}
			if err := reader.Close(); err != nil {
				t.Fatal(err)
			}

			if snap := server.Adapter.Load(); len(snap.Notes) != 3 {
				t.Errorf("stored notes = %d, want 3", len(snap.Notes))
			}

			if err := server.Close(); err != nil {
				t.Fatal(err)
			}
			next := openTestApp(t, cfg)
			if next.Repo.Len() != 3 {
				t.Errorf("next writer sees %d notes, want 3", next.Repo.Len())
			}
		})
	}
}

func TestClose_FlushesPendingEdit(t *testing.T) {
	cfg := testConfig(t, StoreDriverFile)
	cfg.Autosave.OnSwitch = "discard"

	app := openTestApp(t, cfg, WithClock(clockwork.NewFakeClock()))
	created, err := app.Service.CreateNote(context.Background(), models.Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.Service.EditCurrent(context.Background(), models.ContentPatch("unsaved")); err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Fatal(err)
	}

	again := openTestApp(t, cfg)
	if n, _ := again.Repo.Get(created.ID); n.Content != "unsaved" {
		t.Errorf("content = %q, want flushed edit", n.Content)
	}
}

func TestRestore_RewritesStore(t *testing.T) {
	cfg := testConfig(t, StoreDriverFile)
	app := openTestApp(t, cfg)
	n, _ := app.Repo.Create()

	blob := filepath.Join(cfg.Store.Path, cfg.Store.Key+".json")
	if err := os.Remove(blob); err != nil {
		t.Fatal(err)
	}
	app.Restore(cfg.Store.Key)

	data, err := os.ReadFile(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), n.ID) {
		t.Errorf("restored blob missing note: %s", data)
	}
}

func TestOnChange(t *testing.T) {
	app := openTestApp(t, testConfig(t, StoreDriverFile))
	var kinds []string
	app.OnChange(func(ev repository.Event) { kinds = append(kinds, ev.Kind) })

	n, _ := app.Repo.Create()
	_, _ = app.Repo.Delete(n.ID)

	if strings.Join(kinds, ",") != "created,deleted" {
		t.Errorf("events = %v", kinds)
	}
}

func TestHTTPHandler(t *testing.T) {
	app := openTestApp(t, testConfig(t, StoreDriverFile))
	h := NewHTTPHandler(app, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"notes":0`) {
		t.Errorf("ready = %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewBufferString(`{"title":"Via HTTP"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	snap := app.Adapter.Load()
	if len(snap.Notes) != 1 || snap.Notes[0].ID != created.ID || snap.Notes[0].Title != "Via HTTP" {
		t.Errorf("persisted = %+v", snap.Notes)
	}
}

func TestHTTPHandler_AuthDoesNotCoverHealth(t *testing.T) {
	cfg := testConfig(t, StoreDriverFile)
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "s3cret"}
	h := NewHTTPHandler(openTestApp(t, cfg), nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Errorf("live = %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("notes without token = %d", w.Code)
	}
}
