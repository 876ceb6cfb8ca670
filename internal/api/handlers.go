package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/markit/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

func setETag(w http.ResponseWriter, d *NoteDetail) {
	w.Header().Set("ETag", `"`+d.Checksum+`"`)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, optionally filtered by a search term
//	@Tags			notes
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive term matched against title and content"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items := h.svc.ListNotes(r.Context(), q)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items), Query: q})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("note_id", id))
		return
	}
	setETag(w, note)
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes. The new note is opened in the editor.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteFieldsRequest	false	"Initial title and content"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteFieldsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.patch())
	if err != nil {
		attrs := []any{}
		if note != nil {
			attrs = append(attrs, slog.String("note_id", note.ID))
		}
		writeError(w, "create note", err, attrs...)
		return
	}
	setETag(w, note)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PATCH /api/notes/{id}. The change is committed immediately.
//
//	@Summary		Update a note's title and/or content
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Content checksum for optimistic concurrency"
//	@Param			body		body		NoteFieldsRequest	true	"Fields to change"
//	@Success		200			{object}	NoteDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req NoteFieldsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p := req.patch()
	if p.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, errorBody("title or content is required"))
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	note, err := h.svc.UpdateNote(r.Context(), id, p, ifMatch)
	if err != nil {
		writeError(w, "update note", err, slog.String("note_id", id))
		return
	}
	setETag(w, note)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting an unknown id succeeds.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err, slog.String("note_id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportNote handles GET /api/notes/{id}/export.
//
//	@Summary		Download a note as a markdown file
//	@Tags			notes
//	@Produce		text/markdown
//	@Param			id	path	string	true	"Note id"
//	@Success		200	{file}	file
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/export [get]
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.svc.ExportNote(r.Context(), id)
	if err != nil {
		writeError(w, "export note", err, slog.String("note_id", id))
		return
	}
	writeArtifact(w, a)
}
