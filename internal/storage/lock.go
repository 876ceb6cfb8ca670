package storage

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/starford/markit/internal/apperr"
)

// LockFileName is the lock file created inside a file store directory.
const LockFileName = ".markit.lock"

// Lock is an exclusive claim on a store held by one writing process.
type Lock struct {
	path string
}

// AcquireLock creates the lock file at path with O_EXCL and records this
// process id in it. A lock left behind by a process that no longer exists is
// taken over. A live holder yields apperr.ErrLocked.
func AcquireLock(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("storage: write lock: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("storage: lock: %w", err)
		}

		pid, alive := lockHolder(path)
		if alive {
			return nil, fmt.Errorf("storage: %w (pid %d, %s)", apperr.ErrLocked, pid, path)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("storage: %w (%s)", apperr.ErrLocked, path)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. Safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: release lock: %w", err)
	}
	return nil
}

// lockHolder reports the pid recorded in the lock file and whether that process
// still runs. An unreadable or empty lock counts as stale.
func lockHolder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if pid == os.Getpid() {
		return pid, true
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// Signal 0 probes for existence. Errors other than "finished" (EPERM, or
	// platforms without signal 0) are taken as a live holder.
	err = p.Signal(syscall.Signal(0))
	return pid, !errors.Is(err, os.ErrProcessDone)
}

// ReadOnly wraps p so every mutating call fails with apperr.ErrReadOnly.
func ReadOnly(p Provider) Provider {
	return readOnly{p}
}

type readOnly struct {
	Provider
}

func (r readOnly) Write(key string, _ []byte) error {
	return fmt.Errorf("storage: write %s: %w", key, apperr.ErrReadOnly)
}

func (r readOnly) Delete(key string) error {
	return fmt.Errorf("storage: delete %s: %w", key, apperr.ErrReadOnly)
}

func (r readOnly) Move(oldKey, _ string) error {
	return fmt.Errorf("storage: move %s: %w", oldKey, apperr.ErrReadOnly)
}
