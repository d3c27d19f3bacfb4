package api

import (
	"net/http"

	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/parser"
)

// ExtractLinks handles POST /markdown/links.
//
//	@Summary		Extract wikilink texts from Markdown
//	@Tags			markdown
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MarkdownRequest	true	"Markdown source"
//	@Success		200		{object}	map[string][]string
//	@Router			/markdown/links [post]
func (h *Handler) ExtractLinks(w http.ResponseWriter, r *http.Request) {
	var req MarkdownRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": parser.ExtractLinks(req.Content)})
}

// PlainText handles POST /markdown/text.
//
//	@Summary		Strip Markdown formatting
//	@Tags			markdown
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MarkdownRequest	true	"Markdown source"
//	@Success		200		{object}	map[string]string
//	@Router			/markdown/text [post]
func (h *Handler) PlainText(w http.ResponseWriter, r *http.Request) {
	var req MarkdownRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": markdown.PlainText(req.Content)})
}

// RenderHTML handles POST /markdown/html.
//
//	@Summary		Render Markdown to sanitized HTML
//	@Tags			markdown
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MarkdownRequest	true	"Markdown source"
//	@Success		200		{object}	map[string]string
//	@Router			/markdown/html [post]
func (h *Handler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	var req MarkdownRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": markdown.RenderHTML(req.Content)})
}
