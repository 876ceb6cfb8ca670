package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/starford/markit/internal/apperr"
	"github.com/starford/markit/internal/export"
)

const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeError maps domain errors to HTTP statuses and logs unexpected ones.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrNoOpenNote):
		writeJSON(w, http.StatusConflict, errorBody("no note is open"))
	case errors.Is(err, apperr.ErrNotLoaded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("notes not loaded"))
	default:
		args := append([]any{slog.String("error", err.Error())}, attrs...)
		slog.Error("api: "+op+" failed", args...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// writeArtifact serves an exported note as a file download.
func writeArtifact(w http.ResponseWriter, a export.Artifact) {
	w.Header().Set("Content-Type", a.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := a.WriteTo(w); err != nil {
		slog.Error("api: export write failed", slog.String("filename", a.Filename), slog.String("error", err.Error()))
	}
}
