package api

import (
	"github.com/starford/markit/internal/models"
	"github.com/starford/markit/internal/noteservice"
)

// NoteFieldsRequest is the body for creating, updating and editing a note.
// Absent fields are left unchanged.
type NoteFieldsRequest struct {
	Title   *string `json:"title,omitempty" example:"Shopping"`
	Content *string `json:"content,omitempty" example:"# Shopping\n- milk"`
}

func (r NoteFieldsRequest) patch() models.Patch {
	return models.Patch{Title: r.Title, Content: r.Content}
}

// OpenEditorRequest is the body for PUT /api/editor.
type OpenEditorRequest struct {
	ID string `json:"id" example:"0190f7b2-6c1e-7d3a-9c11-2f0e6a4b8d21"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps a filtered note listing.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
	Query string         `json:"query,omitempty"`
}
