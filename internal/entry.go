// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/markit/internal/api"
	"github.com/starford/markit/internal/mcpserver"
	"github.com/starford/markit/internal/repository"
	"github.com/starford/markit/internal/sse"
	"github.com/starford/markit/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// NewHTTPHandler builds the root router: health probes, then the API under /api.
func NewHTTPHandler(app *App, broker *sse.Broker) http.Handler {
	cfg := app.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !app.Repo.Loaded() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","notes":%d}`, app.Repo.Len())
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(app.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))
	return r
}

// Run starts the HTTP host with the given options and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := Open(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.String("autosave_on_switch", cfg.Autosave.OnSwitch),
		slog.Duration("autosave_quiescence", cfg.Autosave.Quiescence),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	app.OnChange(func(ev repository.Event) {
		broker.PublishNoteEvent(ev.Kind, ev.Note.ID, ev.Note.Title)
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(app, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if app.fs != nil && cfg.Store.Guard {
		g.Go(func() error {
			if err := storage.Guard(gCtx, app.fs, app.Adapter.Key(), logger, app.Restore); err != nil {
				logger.Warn("guard unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// A non-nil return cancels gCtx, which stops the guard.
		return context.Canceled
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := app.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs must not go to stdout here,
// so callers pass WithLogWriter(os.Stderr).
func RunMCP(_ context.Context, version string, opts ...Option) error {
	app, err := Open(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Logger.Info("mcp: serving on stdio", slog.Int("notes", app.Repo.Len()))
	if err := mcpserver.New(app.Service, version).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
