package index

import "context"

// NoteIndex is the surface the note store and the transports depend on.
// Consumers should depend on this interface rather than the concrete *Index so
// tests can substitute a failing index.
type NoteIndex interface {
	Upsert(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	Has(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	CountTitle(ctx context.Context, term string) (int, error)
	IDs(ctx context.Context) (map[string]struct{}, error)
	Checksum(ctx context.Context, id string) (string, bool, error)
	Checksums(ctx context.Context) (map[string]string, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	Backlinks(ctx context.Context, target string) ([]string, error)
	Links(ctx context.Context) ([]Link, error)
	Close() error
}

// Verify *Index satisfies NoteIndex at compile time.
var _ NoteIndex = (*Index)(nil)

const defaultSearchLimit = 20
