package api

import (
	"log/slog"
	"net/http"
)

// CurrentNote handles GET /api/editor.
//
//	@Summary		Get the open draft
//	@Tags			editor
//	@Produce		json
//	@Success		200	{object}	NoteDetail
//	@Success		204	"Nothing is open"
//	@Security		BearerAuth
//	@Router			/editor [get]
func (h *Handler) CurrentNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.svc.CurrentNote(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// OpenNote handles PUT /api/editor. A pending edit on the previous note is
// released according to the autosave policy.
//
//	@Summary		Open a note in the editor
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenEditorRequest	true	"Note to open"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor [put]
func (h *Handler) OpenNote(w http.ResponseWriter, r *http.Request) {
	var req OpenEditorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	note, err := h.svc.OpenNote(r.Context(), req.ID)
	if err != nil {
		writeError(w, "open note", err, slog.String("note_id", req.ID))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// EditNote handles PATCH /api/editor. The edit is committed after the
// quiescence period.
//
//	@Summary		Edit the open draft
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteFieldsRequest	true	"Fields to change"
//	@Success		202		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor [patch]
func (h *Handler) EditNote(w http.ResponseWriter, r *http.Request) {
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
	note, err := h.svc.EditCurrent(r.Context(), p)
	if err != nil {
		writeError(w, "edit note", err)
		return
	}
	writeJSON(w, http.StatusAccepted, note)
}

// FlushEditor handles POST /api/editor/flush.
//
//	@Summary		Commit the pending edit now
//	@Tags			editor
//	@Success		204	"Flushed"
//	@Security		BearerAuth
//	@Router			/editor/flush [post]
func (h *Handler) FlushEditor(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.FlushEditor(r.Context()); err != nil {
		writeError(w, "flush editor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseEditor handles DELETE /api/editor.
//
//	@Summary		Close the editor
//	@Tags			editor
//	@Success		204	"Closed"
//	@Security		BearerAuth
//	@Router			/editor [delete]
func (h *Handler) CloseEditor(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseEditor(r.Context()); err != nil {
		writeError(w, "close editor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportCurrent handles GET /api/editor/export.
//
//	@Summary		Download the open draft, including unsaved edits
//	@Tags			editor
//	@Produce		text/markdown
//	@Success		200	{file}	file
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/editor/export [get]
func (h *Handler) ExportCurrent(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.ExportCurrent(r.Context())
	if err != nil {
		writeError(w, "export draft", err)
		return
	}
	writeArtifact(w, a)
}
