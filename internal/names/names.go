// Package names derives file system and index safe identifiers for notes and vaults.
package names

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// idTokens is the number of leading content tokens an untitled note is named after.
const idTokens = 3

// SanitizeIdentifier drops every character outside [A-Za-z0-9_-].
func SanitizeIdentifier(raw string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, raw)
}

// NormalizeWhitespace trims s and collapses every internal whitespace run to a single space.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalID returns the identifier used both as the note's file stem and as its
// index key. A title that survives sanitization wins; otherwise the id is built from
// the first three whitespace-delimited tokens of content, joined with "-".
func CanonicalID(title, content string) string {
	if id := SanitizeIdentifier(title); id != "" {
		return id
	}
	return ContentID(content)
}

// ContentID builds an id from the leading tokens of content. Tokens that sanitize to
// nothing are skipped.
func ContentID(content string) string {
	fields := strings.Fields(content)
	if len(fields) > idTokens {
		fields = fields[:idTokens]
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := SanitizeIdentifier(f); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "-")
}

// UntitledTitle returns a display title for a note created without one.
func UntitledTitle() string {
	// The nanoid alphabet is A-Za-z0-9_- so the title is already identifier safe.
	id, err := gonanoid.New(10)
	if err != nil {
		return "untitled"
	}
	return "untitled_" + id
}
