// Package repository holds the authoritative in-memory note collection.
package repository

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/models"
)

// Saver persists a full snapshot of the collection.
type Saver interface {
	Save(notes []models.Note) error
}

// Event kinds delivered to listeners.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes a committed mutation.
type Event struct {
	Kind string
	Note models.Note
}

// Listener is called after each committed mutation, outside the repository lock.
type Listener func(Event)

// Repository is the sole owner and writer of the note collection.
// Notes are ordered newest-created first and ids are unique.
type Repository struct {
	mu        sync.RWMutex
	notes     []models.Note
	seeded    bool
	saver     Saver
	clock     clockwork.Clock
	newID     func() (string, error)
	listeners []Listener
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock sets the clock used to stamp CreatedAt/UpdatedAt.
func WithClock(c clockwork.Clock) Option {
	return func(r *Repository) { r.clock = c }
}

// WithIDGenerator replaces the UUIDv7 id generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(r *Repository) { r.newID = fn }
}

// WithListener registers a mutation listener.
func WithListener(l Listener) Option {
	return func(r *Repository) { r.listeners = append(r.listeners, l) }
}

// New creates an empty, unseeded repository. It refuses mutations until
// ReplaceAll has been called with the persisted state.
func New(saver Saver, opts ...Option) *Repository {
	r := &Repository{
		notes: []models.Note{},
		saver: saver,
		clock: clockwork.NewRealClock(),
		newID: newUUIDv7,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ReplaceAll seeds the collection from persisted state. It does not save:
// writing here would be the first write of a cold start and must never clobber
// what was just read.
func (r *Repository) ReplaceAll(notes []models.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = slices.Clone(notes)
	if r.notes == nil {
		r.notes = []models.Note{}
	}
	r.seeded = true
}

// Loaded reports whether ReplaceAll has run.
func (r *Repository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seeded
}

// Create inserts a new default note at the front of the collection and saves.
// A save failure is returned, but the note stays in memory.
func (r *Repository) Create() (models.Note, error) {
	r.mu.Lock()
	if !r.seeded {
		r.mu.Unlock()
		return models.Note{}, apperr.ErrNotLoaded
	}
	id, err := r.uniqueIDLocked()
	if err != nil {
		r.mu.Unlock()
		return models.Note{}, err
	}
	now := r.now()
	n := models.Note{
		ID:        id,
		Title:     models.DefaultTitle,
		Content:   models.DefaultContent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.notes = slices.Insert(r.notes, 0, n)
	err = r.saveLocked()
	r.mu.Unlock()

	r.notify(Event{Kind: EventCreated, Note: n})
	return n, err
}

// Update applies p to the note with the given id and stamps UpdatedAt, keeping
// its position. An unknown id is a no-op reported by found=false: a delete may
// legitimately race a pending autosave.
func (r *Repository) Update(id string, p models.Patch) (n models.Note, found bool, err error) {
	r.mu.Lock()
	if !r.seeded {
		r.mu.Unlock()
		return models.Note{}, false, apperr.ErrNotLoaded
	}
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return models.Note{}, false, nil
	}
	n = r.notes[i].Apply(p)
	now := r.now()
	if !now.After(n.UpdatedAt) {
		// Keep UpdatedAt strictly increasing even under a coarse or frozen clock.
		now = n.UpdatedAt.Add(time.Nanosecond)
	}
	n.UpdatedAt = now
	r.notes[i] = n
	err = r.saveLocked()
	r.mu.Unlock()

	r.notify(Event{Kind: EventUpdated, Note: n})
	return n, true, err
}

// Delete removes the note with the given id and saves. An unknown id is a no-op
// and does not save.
func (r *Repository) Delete(id string) (bool, error) {
	r.mu.Lock()
	if !r.seeded {
		r.mu.Unlock()
		return false, apperr.ErrNotLoaded
	}
	i := r.indexLocked(id)
	if i < 0 {
		r.mu.Unlock()
		return false, nil
	}
	removed := r.notes[i]
	r.notes = slices.Delete(r.notes, i, i+1)
	err := r.saveLocked()
	r.mu.Unlock()

	r.notify(Event{Kind: EventDeleted, Note: removed})
	return true, err
}

// List returns a copy of the collection, newest-created first.
func (r *Repository) List() []models.Note {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.notes)
}

// Get returns a copy of the note with the given id.
func (r *Repository) Get(id string) (models.Note, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.notes[i], true
	}
	return models.Note{}, false
}

// Len returns the number of notes.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notes)
}

// Persist saves the current snapshot again.
func (r *Repository) Persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seeded {
		return apperr.ErrNotLoaded
	}
	return r.saveLocked()
}

func (r *Repository) now() time.Time {
	// Strip the monotonic reading so stored and in-memory values compare equal.
	return r.clock.Now().Round(0)
}

func (r *Repository) indexLocked(id string) int {
	return slices.IndexFunc(r.notes, func(n models.Note) bool { return n.ID == id })
}

func (r *Repository) uniqueIDLocked() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("repository: generate id: %w", err)
		}
		if id != "" && r.indexLocked(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("repository: could not generate a unique id")
}

// saveLocked runs under the write lock so snapshots reach storage in mutation order.
func (r *Repository) saveLocked() error {
	if r.saver == nil {
		return nil
	}
	if err := r.saver.Save(slices.Clone(r.notes)); err != nil {
		return fmt.Errorf("repository: save: %w", err)
	}
	return nil
}

func (r *Repository) notify(ev Event) {
	for _, l := range r.listeners {
		l(ev)
	}
}
