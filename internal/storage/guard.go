package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// guardSettle is how long the guard waits for a burst of events to go quiet
// before inspecting the file.
const guardSettle = 200 * time.Millisecond

// TamperCallback is called when the file backing a key no longer holds the value
// this process last wrote (it was edited, replaced or removed by someone else).
type TamperCallback func(key string)

// Guard watches the FS root and reports foreign changes to the file backing key
// until ctx is cancelled. Events produced by the provider's own atomic writes are
// recognised by checksum and ignored.
func Guard(ctx context.Context, f *FS, key string, logger *slog.Logger, cb TamperCallback) error {
	target, err := f.PathFor(key)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: atomic renames replace the inode.
	if err := w.Add(f.Root()); err != nil {
		return err
	}

	logger.Info("guard: started", slog.String("path", target))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleCheck := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(guardSettle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(guardSettle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("guard: stopped")
			return nil

		case <-settleCh:
			owned, checkErr := f.Owns(key)
			if checkErr != nil {
				logger.Warn("guard: check failed", slog.String("key", key), slog.String("error", checkErr.Error()))
				continue
			}
			if owned {
				continue
			}
			logger.Warn("guard: store changed outside this process", slog.String("key", key))
			if cb != nil {
				cb(key)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("guard: event", slog.String("key", key), slog.String("op", ev.Op.String()))
			scheduleCheck()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("guard: error", slog.String("error", watchErr.Error()))
		}
	}
}
