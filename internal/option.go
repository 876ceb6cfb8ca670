package internal

import (
	"io"

	"github.com/jonboulle/clockwork"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logWriter io.Writer
	clock     clockwork.Clock
	readOnly  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogWriter sets where console logs go. Defaults to stdout.
func WithLogWriter(w io.Writer) Option {
	return func(a *application) {
		a.logWriter = w
	}
}

// WithClock replaces the wall clock used for timestamps and autosave timers.
func WithClock(c clockwork.Clock) Option {
	return func(a *application) {
		a.clock = c
	}
}

// WithReadOnly opens the store without claiming its writer lock. Every mutation
// then fails with apperr.ErrReadOnly, so the app can run next to a writer.
func WithReadOnly() Option {
	return func(a *application) {
		a.readOnly = true
	}
}
