// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrNotLoaded  = errors.New("repository not loaded")
	ErrNoOpenNote = errors.New("no note is open")
	ErrInvalidKey = errors.New("invalid storage key")
	ErrStopped    = errors.New("autosave stopped")
	ErrLocked     = errors.New("store is locked by another process")
	ErrReadOnly   = errors.New("store is open read-only")
	ErrUnreadable = errors.New("store unreadable")
)
