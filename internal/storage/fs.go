package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/starford/markit/internal/checksum"
	"github.com/starford/markit/internal/models"
)

const (
	fileExt    = ".json"
	tempPrefix = ".markit-tmp-"
)

// FS implements Provider with one JSON file per key under a root directory.
type FS struct {
	root string // absolute path to the data directory

	mu       sync.Mutex
	lastSums map[string]string // checksum of the last value this process wrote, per key
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, lastSums: make(map[string]string)}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// PathFor returns the file backing key.
func (f *FS) PathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, key+fileExt), nil
}

// List returns metadata for every stored key, sorted by key.
func (f *FS) List() ([]models.EntryMetadata, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.EntryMetadata
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, name))
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, models.EntryMetadata{
			Key:       strings.TrimSuffix(name, fileExt),
			Checksum:  checksum.Sum(data),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Read returns the raw bytes stored under key.
func (f *FS) Read(key string) ([]byte, error) {
	abs, err := f.PathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

// Write atomically writes value: tmp file → fsync → rename.
func (f *FS) Write(key string, value []byte) error {
	abs, err := f.PathFor(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}

	// Record the checksum before the rename becomes visible so the guard
	// never mistakes our own write for a foreign one.
	f.mu.Lock()
	prev, hadPrev := f.lastSums[key]
	f.lastSums[key] = checksum.Sum(value)
	f.mu.Unlock()

	if err := os.Rename(tmpName, abs); err != nil {
		f.mu.Lock()
		if hadPrev {
			f.lastSums[key] = prev
		} else {
			delete(f.lastSums, key)
		}
		f.mu.Unlock()
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the file backing key.
func (f *FS) Delete(key string) error {
	abs, err := f.PathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	f.mu.Lock()
	delete(f.lastSums, key)
	f.mu.Unlock()
	return nil
}

// Move renames the file backing oldKey to the one backing newKey.
func (f *FS) Move(oldKey, newKey string) error {
	absOld, err := f.PathFor(oldKey)
	if err != nil {
		return err
	}
	absNew, err := f.PathFor(newKey)
	if err != nil {
		return err
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	f.mu.Lock()
	if sum, ok := f.lastSums[oldKey]; ok {
		f.lastSums[newKey] = sum
		delete(f.lastSums, oldKey)
	}
	f.mu.Unlock()
	return nil
}

// Close is a no-op for the file system provider.
func (f *FS) Close() error { return nil }

// Owns reports whether the current file for key still holds the last value this
// process wrote. A missing file or a foreign write returns false.
func (f *FS) Owns(key string) (bool, error) {
	f.mu.Lock()
	want, ok := f.lastSums[key]
	f.mu.Unlock()
	if !ok {
		// Nothing written yet, so there is nothing to defend.
		return true, nil
	}
	data, err := f.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return checksum.Sum(data) == want, nil
}
