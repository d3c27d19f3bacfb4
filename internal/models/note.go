// Package models defines the domain types shared across packages.
package models

import (
	"strings"
	"time"

	"github.com/starford/ansuz/internal/names"
)

// NoteExt is the file extension of every note.
const NoteExt = ".md"

// Note is a note as seen by callers: its canonical id, display title and content.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Links     []string  `json:"links,omitempty"`
	Backlinks []string  `json:"backlinks,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileName returns the file name a note id is stored under.
func FileName(id string) string {
	return id + NoteExt
}

// NoteID returns the id of the note stored in the file called name. Only
// visible .md files whose stem is already a sanitized identifier hold notes;
// anything else, such as "my note.md", is not addressable by id and is ignored.
func NoteID(name string) (string, bool) {
	stem, ok := strings.CutSuffix(name, NoteExt)
	if !ok || stem == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return stem, names.SanitizeIdentifier(stem) == stem
}
