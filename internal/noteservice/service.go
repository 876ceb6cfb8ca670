// Package noteservice is the application layer shared by the HTTP API, the MCP
// server and the CLI. It combines the repository, search, export and the editor
// session.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/checksum"
	"github.com/starford/markit/internal/editor"
	"github.com/starford/markit/internal/export"
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/parser"
	"github.com/starford/markit/internal/repository"
	"github.com/starford/markit/internal/search"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service coordinates the repository and the editor session.
type Service struct {
	repo    *repository.Repository
	session *editor.Session
	logger  *slog.Logger
}

// NewService creates a new note service.
func NewService(repo *repository.Repository, session *editor.Session, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, session: session, logger: logger}
}

// ListNotes returns the notes matching term, newest first. An empty term lists all.
func (s *Service) ListNotes(_ context.Context, term string) []NoteListItem {
	notes := search.Filter(s.repo.List(), term)
	items := make([]NoteListItem, len(notes))
	for i, n := range notes {
		sum := parser.Summarize(n.Content)
		items[i] = NoteListItem{
			ID:        n.ID,
			Title:     n.Title,
			Preview:   sum.Preview,
			Tags:      sum.Tags,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		}
	}
	return items
}

// GetNote returns the committed note with the given id.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	n, ok := s.repo.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return buildNoteDetail(n), nil
}

// CreateNote creates a note with default title and content, applies p if it sets
// anything, and opens the note in the editor.
func (s *Service) CreateNote(_ context.Context, p models.Patch) (*NoteDetail, error) {
	n, err := s.repo.Create()
	if n.ID == "" {
		return nil, err
	}
	if err != nil {
		// The note exists in memory; the next successful save will include it.
		s.logger.Error("noteservice: save after create failed",
			slog.String("note_id", n.ID), slog.String("error", err.Error()))
	}
	if !p.IsEmpty() {
		updated, _, uerr := s.repo.Update(n.ID, p)
		if updated.ID != "" {
			n = updated
		}
		err = errors.Join(err, uerr)
	}
	if _, oerr := s.session.Open(n.ID); oerr != nil {
		err = errors.Join(err, oerr)
	}
	s.logger.Info("noteservice: note created", slog.String("note_id", n.ID))
	return buildNoteDetail(n), err
}

// UpdateNote commits p immediately. When ifMatch is set it must equal the
// current content checksum. An open note is updated through the editor so its
// draft and any pending autosave stay consistent.
func (s *Service) UpdateNote(_ context.Context, id string, p models.Patch, ifMatch string) (*NoteDetail, error) {
	cur, ok := s.repo.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if ifMatch != "" && ifMatch != checksum.String(cur.Content) {
		return nil, apperr.ErrConflict
	}

	handled, err := s.session.Commit(id, p)
	if !handled {
		var found bool
		_, found, err = s.repo.Update(id, p)
		if !found && err == nil {
			return nil, apperr.ErrNotFound
		}
	}
	n, ok := s.repo.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return buildNoteDetail(n), err
}

// DeleteNote removes a note and closes it in the editor if it was open.
// It reports whether the note existed.
func (s *Service) DeleteNote(_ context.Context, id string) (bool, error) {
	existed, err := s.repo.Delete(id)
	if existed {
		s.session.Forget(id)
		s.logger.Info("noteservice: note deleted", slog.String("note_id", id))
	}
	return existed, err
}

// ExportNote exports the committed note with the given id.
func (s *Service) ExportNote(_ context.Context, id string) (export.Artifact, error) {
	n, ok := s.repo.Get(id)
	if !ok {
		return export.Artifact{}, apperr.ErrNotFound
	}
	return export.Export(n), nil
}

// OpenNote opens id in the editor, releasing any pending edit first.
func (s *Service) OpenNote(_ context.Context, id string) (*NoteDetail, error) {
	n, err := s.session.Open(id)
	if n.ID == "" {
		return nil, err
	}
	return buildNoteDetail(n), err
}

// EditCurrent applies p to the open draft and schedules autosave.
func (s *Service) EditCurrent(_ context.Context, p models.Patch) (*NoteDetail, error) {
	n, err := s.session.Edit(p)
	if n.ID == "" {
		return nil, err
	}
	return buildNoteDetail(n), err
}

// CurrentNote returns the open draft.
func (s *Service) CurrentNote(_ context.Context) (*NoteDetail, bool) {
	n, ok := s.session.Current()
	if !ok {
		return nil, false
	}
	return buildNoteDetail(n), true
}

// CloseEditor closes the open note, applying the autosave policy.
func (s *Service) CloseEditor(_ context.Context) error {
	return s.session.Close()
}

// FlushEditor commits the pending edit now.
func (s *Service) FlushEditor(_ context.Context) error {
	return s.session.Flush()
}

// ExportCurrent exports the open draft, including uncommitted edits.
func (s *Service) ExportCurrent(_ context.Context) (export.Artifact, error) {
	return s.session.Export()
}

// Count returns the number of notes.
func (s *Service) Count() int {
	return s.repo.Len()
}

func buildNoteDetail(n models.Note) *NoteDetail {
	return &NoteDetail{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Checksum:  checksum.String(n.Content),
		Tags:      parser.Summarize(n.Content).Tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// Describe renders a one-line description of a note for logs and CLI output.
func Describe(n NoteListItem) string {
	return fmt.Sprintf("%s  %s  %s", n.ID, n.UpdatedAt.Format(time.DateTime), n.Title)
}
