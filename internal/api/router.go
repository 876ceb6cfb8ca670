package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/markit/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/{id}", h.GetNote)
		r.Patch("/{id}", h.UpdateNote)
		r.Delete("/{id}", h.DeleteNote)
		r.Get("/{id}/export", h.ExportNote)
	})

	r.Route("/editor", func(r chi.Router) {
		r.Get("/", h.CurrentNote)
		r.Put("/", h.OpenNote)
		r.Patch("/", h.EditNote)
		r.Delete("/", h.CloseEditor)
		r.Post("/flush", h.FlushEditor)
		r.Get("/export", h.ExportCurrent)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
