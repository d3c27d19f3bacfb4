// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz vault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/vault"
)

const contractURI = "ansuz://note-format"

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp          *server.MCPServer
	vaults       *vault.Manager
	defaultVault string
	logger       *slog.Logger
}

// New creates a new MCP server with all Ansuz tools registered. Tools that take
// an optional vault argument fall back to defaultVault.
func New(vaults *vault.Manager, defaultVault string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{vaults: vaults, defaultVault: defaultVault, logger: logger}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	vaultArg := mcp.WithString("vault", mcp.Description("Vault name (defaults to the configured vault)"))

	s.mcp.AddTool(mcp.NewTool("list_vaults",
		mcp.WithDescription("List all vaults."),
	), s.listVaults)

	s.mcp.AddTool(mcp.NewTool("create_vault",
		mcp.WithDescription("Create a vault, or rebuild the index of an existing one."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Vault name")),
	), s.createVault)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new Markdown note. The note id is derived from the title, "+
			"or from the first words of the content when no title is given. Read the contract "+
			"first via the get_note_contract tool or the "+contractURI+" resource."),
		vaultArg,
		mcp.WithString("title", mcp.Description("Note title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Replace the content of a note. A non-empty title renames it."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New Markdown content")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note and its index entry."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("rename_note",
		mcp.WithDescription("Give a note a new title, moving it to the id derived from that title."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Current note id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("New title")),
	), s.renameNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the ids of all notes in a vault."),
		vaultArg,
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and titles."),
		vaultArg,
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("render_note_html",
		mcp.WithDescription("Render a note to sanitized HTML."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.renderNoteHTML)

	s.mcp.AddTool(mcp.NewTool("extract_links",
		mcp.WithDescription("Extract [[wikilink]] texts from Markdown, in document order."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.extractLinks)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		vaultArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the Ansuz note format contract. "+
			"Call this before creating or updating notes."),
	), s.getNoteContract)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("How notes are named, stored and linked."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// store opens the vault named by the optional "vault" argument.
func (s *Server) store(ctx context.Context, req mcp.CallToolRequest) (*notes.Store, error) {
	name := req.GetString("vault", s.defaultVault)
	if name == "" {
		return nil, fmt.Errorf("mcp: %w: no vault given and no default configured", apperr.ErrInvalidName)
	}
	v, err := s.vaults.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return notes.New(v, notes.WithLogger(s.logger)), nil
}

// toolError converts a domain error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("already exists: " + err.Error())
	case errors.Is(err, apperr.ErrInvalidName):
		return mcp.NewToolResultError("invalid name: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listVaults(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.vaults.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) createVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.vaults.Create(ctx, name)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created vault: %s", v.Name())), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	note, err := st.Create(ctx, req.GetString("title", ""), content)
	switch {
	case apperr.IsPartial(err):
		return mcp.NewToolResultText(fmt.Sprintf("created: %s (not indexed: %v)", note.ID, err)), nil
	case err != nil:
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	content, err := st.Read(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	note, err := st.Update(ctx, id, req.GetString("title", ""), content)
	switch {
	case apperr.IsPartial(err):
		return mcp.NewToolResultText(fmt.Sprintf("updated: %s (not indexed: %v)", note.ID, err)), nil
	case err != nil:
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s", note.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	err = st.Delete(ctx, id)
	switch {
	case apperr.IsPartial(err):
		return mcp.NewToolResultText(fmt.Sprintf("deleted: %s (index not updated: %v)", id, err)), nil
	case err != nil:
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) renameNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	note, err := st.Rename(ctx, id, title)
	switch {
	case apperr.IsPartial(err):
		return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s (not indexed: %v)", id, note.ID, err)), nil
	case err != nil:
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("renamed: %s -> %s", id, note.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	ids, err := st.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	results, err := st.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) renderNoteHTML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	html, err := st.RenderHTML(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(html), nil
}

func (s *Server) extractLinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(parser.ExtractLinks(content)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.store(ctx, req)
	if err != nil {
		return toolError(err), nil
	}
	bl, err := st.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
