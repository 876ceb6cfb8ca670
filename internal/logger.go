package internal

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLogger builds the JSON logger. When a log file is configured, records are
// also written to it with size-based rotation.
func newLogger(cfg *Config, console io.Writer) (*slog.Logger, io.Closer) {
	if console == nil {
		console = os.Stdout
	}
	var (
		w                = console
		closer io.Closer = nopCloser{}
	)
	if lc := cfg.App.Log; lc.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		w = io.MultiWriter(console, rotator)
		closer = rotator
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	return logger, closer
}
