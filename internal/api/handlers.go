package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/vault"
)

// Handler holds API route handlers.
type Handler struct {
	vaults *vault.Manager
	logger *slog.Logger
	notify notes.Notifier
}

// NewHandler creates a new Handler. notify may be nil.
func NewHandler(vaults *vault.Manager, logger *slog.Logger, notify notes.Notifier) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{vaults: vaults, logger: logger, notify: notify}
}

// store opens the vault named in the URL and returns a note store for it.
func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*notes.Store, bool) {
	name := chi.URLParam(r, "vault")
	v, err := h.vaults.Open(r.Context(), name)
	if err != nil {
		writeError(w, h.logger.With(slog.String("vault", name)), "open vault", err)
		return nil, false
	}
	opts := []notes.Option{notes.WithLogger(h.logger)}
	if h.notify != nil {
		opts = append(opts, notes.WithNotifier(h.notify))
	}
	return notes.New(v, opts...), true
}

// writeNote writes a mutated note, downgrading to 202 when only indexing failed.
func (h *Handler) writeNote(w http.ResponseWriter, op string, okStatus int, note *models.Note, err error) {
	if err != nil && !apperr.IsPartial(err) {
		writeError(w, h.logger, op, err)
		return
	}
	if err != nil {
		h.logger.Warn(op+" partially applied", slog.String("id", note.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusAccepted, NoteResponse{Note: note, Indexed: false, Warning: err.Error()})
		return
	}
	writeJSON(w, okStatus, NoteResponse{Note: note, Indexed: true})
}

// ListVaults handles GET /vaults.
//
//	@Summary		List vaults
//	@Tags			vaults
//	@Produce		json
//	@Success		200	{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/vaults [get]
func (h *Handler) ListVaults(w http.ResponseWriter, r *http.Request) {
	names, err := h.vaults.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "list vaults", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vaults": names})
}

// CreateVault handles POST /vaults.
//
//	@Summary		Create (or recreate) a vault
//	@Tags			vaults
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateVaultRequest	true	"Vault to create"
//	@Success		201		{object}	VaultResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults [post]
func (h *Handler) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req CreateVaultRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := h.vaults.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, h.logger, "create vault", err)
		return
	}
	writeJSON(w, http.StatusCreated, VaultResponse{Name: v.Name(), Path: v.Path()})
}

// DeleteVault handles DELETE /vaults/{vault}.
//
//	@Summary		Delete a vault and all its notes
//	@Tags			vaults
//	@Param			vault	path	string	true	"Vault name"
//	@Success		204		"Vault deleted"
//	@Security		BearerAuth
//	@Router			/vaults/{vault} [delete]
func (h *Handler) DeleteVault(w http.ResponseWriter, r *http.Request) {
	if err := h.vaults.Delete(r.Context(), chi.URLParam(r, "vault")); err != nil {
		writeError(w, h.logger, "delete vault", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotes handles GET /vaults/{vault}/notes.
//
//	@Summary		List note ids in a vault
//	@Tags			notes
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Success		200		{object}	map[string][]string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	ids, err := s.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": ids})
}

// CreateNote handles POST /vaults/{vault}/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			vault	path		string				true	"Vault name"
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteResponse
//	@Success		202		{object}	NoteResponse	"Written but not indexed"
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	note, err := s.Create(r.Context(), req.Title, req.Content)
	h.writeNote(w, "create note", http.StatusCreated, note, err)
}

// GetNote handles GET /vaults/{vault}/notes/{id}.
//
//	@Summary		Get a note with its links and backlinks
//	@Tags			notes
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Param			id		path		string	true	"Note id"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	note, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PUT /vaults/{vault}/notes/{id}.
//
//	@Summary		Replace a note's content
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			vault	path		string				true	"Vault name"
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	NoteResponse
//	@Success		202		{object}	NoteResponse	"Written but not indexed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	note, err := s.Update(r.Context(), chi.URLParam(r, "id"), req.Title, req.Content)
	h.writeNote(w, "update note", http.StatusOK, note, err)
}

// DeleteNote handles DELETE /vaults/{vault}/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			vault	path	string	true	"Vault name"
//	@Param			id		path	string	true	"Note id"
//	@Success		204		"Note deleted"
//	@Success		202		{object}	errResponse	"File removed but index not updated"
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	err := s.Delete(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case apperr.IsPartial(err):
		indexed := false
		h.logger.Warn("delete note partially applied", slog.String("error", err.Error()))
		writeJSON(w, http.StatusAccepted, errResponse{Error: err.Error(), Code: codeIndex, Indexed: &indexed})
	default:
		writeError(w, h.logger, "delete note", err)
	}
}

// RenameNote handles POST /vaults/{vault}/notes/{id}/rename.
//
//	@Summary		Rename a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			vault	path		string				true	"Vault name"
//	@Param			id		path		string				true	"Note id"
//	@Param			body	body		RenameNoteRequest	true	"New title"
//	@Success		200		{object}	NoteResponse
//	@Success		202		{object}	NoteResponse	"Moved but not indexed"
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id}/rename [post]
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameNoteRequest
	if !decode(w, r, &req) {
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	note, err := s.Rename(r.Context(), chi.URLParam(r, "id"), req.Title)
	h.writeNote(w, "rename note", http.StatusOK, note, err)
}

// NoteHTML handles GET /vaults/{vault}/notes/{id}/html.
//
//	@Summary		Render a note to sanitized HTML
//	@Tags			notes
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Param			id		path		string	true	"Note id"
//	@Success		200		{object}	map[string]string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id}/html [get]
func (h *Handler) NoteHTML(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	html, err := s.RenderHTML(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "render note", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "html": html})
}

// Backlinks handles GET /vaults/{vault}/notes/{id}/backlinks.
//
//	@Summary		List notes linking to a note
//	@Tags			notes
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Param			id		path		string	true	"Note id"
//	@Success		200		{object}	map[string][]string
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	ids, err := s.Backlinks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, "backlinks", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": ids})
}

// Search handles GET /vaults/{vault}/search.
//
//	@Summary		Full-text search across a vault
//	@Tags			search
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(codeInvalidRequest, "query parameter 'q' is required"))
		return
	}
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := s.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, h.logger.With(slog.String("query", q)), "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /vaults/{vault}/graph.
//
//	@Summary		Get the link graph (JSON, or DOT with ?format=dot)
//	@Tags			graph
//	@Produce		json
//	@Param			vault	path		string	true	"Vault name"
//	@Param			format	query		string	false	"Output format"	Enums(json, dot)
//	@Success		200		{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	g, err := s.Graph(r.Context())
	if err != nil {
		writeError(w, h.logger, "graph", err)
		return
	}
	if r.URL.Query().Get("format") == "dot" {
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(g.Render()))
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: g.Nodes(), Edges: g.Edges()})
}

// ReindexNote handles POST /vaults/{vault}/notes/{id}/reindex.
//
//	@Summary		Retry indexing an existing note file
//	@Tags			notes
//	@Param			vault	path	string	true	"Vault name"
//	@Param			id		path	string	true	"Note id"
//	@Success		204		"Note reindexed"
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vaults/{vault}/notes/{id}/reindex [post]
func (h *Handler) ReindexNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := s.Reindex(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, "reindex note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
