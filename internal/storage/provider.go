// Package storage defines the durable key/value abstraction the note collection is persisted to.
package storage

import (
	"fmt"
	"regexp"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
)

// Provider stores whole values under flat keys.
// Every Write fully replaces the previous value; there are no partial writes.
type Provider interface {
	// List returns metadata for every stored key.
	List() ([]models.EntryMetadata, error)
	// Read returns the value stored under key. A missing key wraps os.ErrNotExist.
	Read(key string) ([]byte, error)
	// Write atomically replaces the value stored under key.
	Write(key string, value []byte) error
	// Delete removes key. Deleting a missing key wraps os.ErrNotExist.
	Delete(key string) error
	// Move renames oldKey to newKey, replacing newKey if present.
	Move(oldKey, newKey string) error
	// Close releases any resources held by the provider.
	Close() error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey rejects keys that are empty or could escape a flat namespace.
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) || len(key) > 200 {
		return fmt.Errorf("storage: %w: %q", apperr.ErrInvalidKey, key)
	}
	return nil
}
