package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// CreateVaultRequest is the request body for creating a vault.
type CreateVaultRequest struct {
	Name string `json:"name" example:"Demo" validate:"required"`
}

// Validate validates the request.
func (r *CreateVaultRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// CreateNoteRequest is the request body for creating a note. An empty title
// derives the id from the content.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Hello"`
	Content string `json:"content" example:"Hello world with [[Link]]" validate:"required"`
}

// Validate validates the request.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, 255)),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateNoteRequest is the request body for updating a note. A non-empty title
// re-derives the id.
type UpdateNoteRequest struct {
	Title   string `json:"title,omitempty" example:"Hello"`
	Content string `json:"content" example:"Updated content" validate:"required"`
}

// Validate validates the request.
func (r *UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Length(0, 255)),
		validation.Field(&r.Content, validation.Required),
	)
}

// RenameNoteRequest is the request body for renaming a note.
type RenameNoteRequest struct {
	Title string `json:"title" example:"New Title" validate:"required"`
}

// Validate validates the request.
func (r *RenameNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
	)
}

// MarkdownRequest is the request body of the stateless markdown endpoints.
type MarkdownRequest struct {
	Content string `json:"content" example:"# Title\nSee [[Other]]"`
}

// Validate validates the request.
func (r *MarkdownRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Content, validation.Length(0, maxBodyBytes)),
	)
}

// VaultResponse describes a vault.
type VaultResponse struct {
	Name string `json:"name" example:"Demo" validate:"required"`
	Path string `json:"path" example:"/data/vaults/Demo" validate:"required"`
}

// NoteResponse is a note plus whether its index document is current. Indexed
// is false when the file was written but indexing failed.
type NoteResponse struct {
	*models.Note
	Indexed bool   `json:"indexed"`
	Warning string `json:"warning,omitempty"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []string     `json:"nodes" validate:"required"`
	Edges []graph.Edge `json:"edges" validate:"required"`
}
