package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/autosave"
	"github.com/starford/markit/internal/editor"
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/noteservice"
	"github.com/starford/markit/internal/persistence"
	"github.com/starford/markit/internal/repository"
	"github.com/starford/markit/internal/storage"
)

// App is the wired application context shared by the HTTP host, the MCP server
// and the CLI commands.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   storage.Provider
	Adapter *persistence.Adapter
	Repo    *repository.Repository
	Session *editor.Session
	Service *noteservice.Service

	fs        *storage.FS
	lock      *storage.Lock
	logCloser io.Closer

	mu        sync.Mutex
	listeners []repository.Listener
	closeOnce sync.Once
	closeErr  error
}

// Open wires the application: it opens the store, loads the persisted collection
// and seeds the repository before anything can save.
func Open(opts ...Option) (*App, error) {
	a := &application{}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	cfg := a.config

	logger, logCloser := newLogger(cfg, a.logWriter)
	app := &App{Config: cfg, Logger: logger, logCloser: logCloser}

	lock, store, fs, err := openStore(cfg.Store, a.readOnly)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	if a.readOnly {
		store, fs = storage.ReadOnly(store), nil
	}
	app.Store, app.fs, app.lock = store, fs, lock
	app.Adapter = persistence.New(store, cfg.Store.Key, logger)

	app.Repo = repository.New(app.Adapter,
		repository.WithClock(a.clock),
		repository.WithListener(app.dispatch),
	)

	snap := app.Adapter.Load()
	if snap.Unreadable {
		// Seeding empty here would let the next save overwrite an intact store.
		_ = store.Close()
		_ = lock.Release()
		_ = logCloser.Close()
		return nil, fmt.Errorf("load notes: %w: %w", apperr.ErrUnreadable, snap.Cause)
	}
	if snap.Recovered {
		attrs := []any{slog.String("key", app.Adapter.Key())}
		if snap.Cause != nil {
			attrs = append(attrs, slog.String("cause", snap.Cause.Error()))
		}
		if snap.QuarantineKey != "" {
			attrs = append(attrs, slog.String("quarantine_key", snap.QuarantineKey))
		}
		logger.Warn("app: stored notes were unusable, starting empty", attrs...)
	}
	app.Repo.ReplaceAll(snap.Notes)

	sched := autosave.New(app.commit,
		autosave.WithClock(a.clock),
		autosave.WithDelay(cfg.Autosave.Quiescence),
		autosave.WithPolicy(cfg.Autosave.Policy()),
		autosave.WithLogger(logger),
	)
	app.Session = editor.New(app.Repo, sched, logger)
	app.Service = noteservice.NewService(app.Repo, app.Session, logger)

	logger.Info("app: notes loaded",
		slog.String("driver", cfg.Store.Driver),
		slog.String("path", cfg.Store.Path),
		slog.Int("count", app.Repo.Len()))
	return app, nil
}

// openStore opens the configured provider. Unless readOnly, it first claims the
// store's writer lock so a second writing process fails instead of racing.
func openStore(cfg StoreConfig, readOnly bool) (*storage.Lock, storage.Provider, *storage.FS, error) {
	dir, lockPath := cfg.Path, filepath.Join(cfg.Path, storage.LockFileName)
	if cfg.Driver == StoreDriverSQLite {
		dir, lockPath = filepath.Dir(cfg.Path), cfg.Path+".lock"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create store dir: %w", err)
	}

	var lock *storage.Lock
	if !readOnly {
		l, err := storage.AcquireLock(lockPath)
		if err != nil {
			return nil, nil, nil, err
		}
		lock = l
	}

	var (
		store storage.Provider
		fs    *storage.FS
		err   error
	)
	switch cfg.Driver {
	case StoreDriverSQLite:
		store, err = storage.OpenSQLite(cfg.Path)
	default:
		fs, err = storage.NewFS(cfg.Path)
		store = fs
	}
	if err != nil {
		_ = lock.Release()
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}
	return lock, store, fs, nil
}

// commit is the autosave sink: it applies a settled edit to the repository.
func (a *App) commit(noteID string, p models.Patch) error {
	_, found, err := a.Repo.Update(noteID, p)
	if !found && err == nil {
		a.Logger.Debug("app: autosave target no longer exists", slog.String("note_id", noteID))
	}
	return err
}

// OnChange registers l to receive every committed repository mutation.
func (a *App) OnChange(l repository.Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, l)
}

func (a *App) dispatch(ev repository.Event) {
	a.mu.Lock()
	ls := a.listeners
	a.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

// Restore rewrites the stored collection from memory. Used when the store was
// changed behind this process's back.
func (a *App) Restore(key string) {
	if err := a.Repo.Persist(); err != nil {
		a.Logger.Error("app: restore failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	a.Logger.Info("app: store restored from memory", slog.String("key", key), slog.Int("count", a.Repo.Len()))
}

// Close flushes any pending edit and releases the store. Safe to call twice.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if err := a.Session.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("flush pending edit: %w", err))
		}
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		if err := a.lock.Release(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			a.Logger.Error("app: close failed", slog.String("error", errors.Join(errs...).Error()))
		}
		_ = a.logCloser.Close()
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
