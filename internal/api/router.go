package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Vaults.
	r.Get("/vaults", h.ListVaults)
	r.Post("/vaults", h.CreateVault)

	r.Route("/vaults/{vault}", func(r chi.Router) {
		r.Delete("/", h.DeleteVault)

		// Notes CRUD.
		r.Get("/notes", h.ListNotes)
		r.Post("/notes", h.CreateNote)
		r.Get("/notes/{id}", h.GetNote)
		r.Put("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Post("/notes/{id}/rename", h.RenameNote)
		r.Post("/notes/{id}/reindex", h.ReindexNote)
		r.Get("/notes/{id}/html", h.NoteHTML)
		r.Get("/notes/{id}/backlinks", h.Backlinks)

		r.Get("/search", h.Search)
		r.Get("/graph", h.Graph)
	})

	// Stateless markdown helpers.
	r.Post("/markdown/links", h.ExtractLinks)
	r.Post("/markdown/text", h.PlainText)
	r.Post("/markdown/html", h.RenderHTML)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
