// Package editor tracks the note currently open for editing and feeds its
// edits to the autosave scheduler.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/autosave"
	"github.com/starford/markit/internal/export"
	"github.com/starford/markit/internal/models"
)

// NoteReader looks up committed notes.
type NoteReader interface {
	Get(id string) (models.Note, bool)
}

// Session holds an optional draft of one open note. The draft carries edits
// that autosave has not committed yet.
type Session struct {
	mu     sync.Mutex
	draft  *models.Note
	notes  NoteReader
	sched  *autosave.Scheduler
	logger *slog.Logger
}

// New creates a Session with nothing open.
func New(notes NoteReader, sched *autosave.Scheduler, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{notes: notes, sched: sched, logger: logger}
}

// Open releases any pending edit according to the autosave policy and opens id.
// A failed release is returned alongside the opened note; the switch still happens.
func (s *Session) Open(id string) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes.Get(id); !ok {
		return models.Note{}, fmt.Errorf("editor: open %s: %w", id, apperr.ErrNotFound)
	}
	relErr := s.sched.Release()

	// Re-read so a flushed edit is visible in the new draft.
	n, ok := s.notes.Get(id)
	if !ok {
		return models.Note{}, fmt.Errorf("editor: open %s: %w", id, apperr.ErrNotFound)
	}
	s.draft = &n
	s.logger.Debug("editor: opened note", slog.String("note_id", id))
	return n, relErr
}

// Edit applies p to the draft and schedules the draft's title and content for
// autosave.
func (s *Session) Edit(p models.Patch) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil {
		return models.Note{}, apperr.ErrNoOpenNote
	}
	*s.draft = s.draft.Apply(p)
	d := *s.draft
	err := s.sched.Schedule(d.ID, models.Patch{Title: &d.Title, Content: &d.Content})
	return d, err
}

// Commit applies p to the open note and commits it immediately. It reports
// false when id is not the open note, leaving the caller to update directly.
func (s *Session) Commit(id string, p models.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft == nil || s.draft.ID != id {
		return false, nil
	}
	*s.draft = s.draft.Apply(p)
	d := *s.draft
	if err := s.sched.Schedule(d.ID, models.Patch{Title: &d.Title, Content: &d.Content}); err != nil {
		return true, err
	}
	if err := s.sched.Flush(); err != nil {
		return true, err
	}
	if n, ok := s.notes.Get(id); ok {
		s.draft = &n
	}
	return true, nil
}

// Current returns a copy of the draft. Title and content are the draft's own;
// timestamps follow the stored note, so an autosave commit shows up in UpdatedAt.
func (s *Session) Current() (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return models.Note{}, false
	}
	if n, ok := s.notes.Get(s.draft.ID); ok {
		s.draft.CreatedAt, s.draft.UpdatedAt = n.CreatedAt, n.UpdatedAt
	}
	return *s.draft, true
}

// Close applies the autosave policy to any pending edit and clears the draft.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.sched.Release()
	s.draft = nil
	return err
}

// Flush commits the pending edit now and refreshes the draft from the store.
func (s *Session) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sched.Flush(); err != nil {
		return err
	}
	if s.draft != nil {
		if n, ok := s.notes.Get(s.draft.ID); ok {
			s.draft = &n
		}
	}
	return nil
}

// Export exports the draft, including edits not yet committed.
func (s *Session) Export() (export.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return export.Artifact{}, apperr.ErrNoOpenNote
	}
	return export.Export(*s.draft), nil
}

// Forget clears the draft and drops its pending edit if id is the open note.
// Called after id has been deleted.
func (s *Session) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.CancelNote(id)
	if s.draft != nil && s.draft.ID == id {
		s.draft = nil
		s.logger.Debug("editor: forgot deleted note", slog.String("note_id", id))
	}
}

// Shutdown flushes the pending edit, stops autosave and clears the draft.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.sched.Stop()
	s.draft = nil
	if err != nil && !errors.Is(err, apperr.ErrStopped) {
		return err
	}
	return nil
}
