package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/names"
	"github.com/starford/ansuz/internal/parser"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
}

// Link is a directed wikilink between two note ids.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Upsert writes the document for id and commits. The title field is the
// sanitized id; content is stored whitespace-normalized. The checksum is taken
// over content as given so it matches the file it was read from.
func (ix *Index) Upsert(ctx context.Context, id, content string) error {
	key := names.SanitizeIdentifier(id)
	if key == "" {
		return &apperr.IndexError{Op: "upsert", ID: id, Err: apperr.ErrInvalidName}
	}
	if err := ix.upsert(ctx, key, content); err != nil {
		return &apperr.IndexError{Op: "upsert", ID: key, Err: err}
	}
	return nil
}

func (ix *Index) upsert(ctx context.Context, key, content string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.checkOpen(); err != nil {
		return err
	}

	tx, err := ix.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	body := names.NormalizeWhitespace(content)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (title, content, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, body, checksum.String(content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if err := ftsUpsert(tx, key, body); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, key); err != nil {
		return fmt.Errorf("clear links: %w", err)
	}
	if targets := parser.LinkTargets(content); len(targets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range targets {
			if _, err := stmt.ExecContext(ctx, key, target); err != nil {
				return fmt.Errorf("insert link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the document whose title equals the sanitized id, together with
// its outgoing links, and commits. A missing document is not an error.
func (ix *Index) Delete(ctx context.Context, id string) error {
	key := names.SanitizeIdentifier(id)
	if err := ix.delete(ctx, key); err != nil {
		return &apperr.IndexError{Op: "delete", ID: key, Err: err}
	}
	return nil
}

func (ix *Index) delete(ctx context.Context, key string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.checkOpen(); err != nil {
		return err
	}

	tx, err := ix.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, key); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE title = ?`, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Has reports whether a document exists for id.
func (ix *Index) Has(ctx context.Context, id string) (bool, error) {
	n, err := ix.CountTitle(ctx, id)
	return n > 0, err
}

// CountTitle returns how many documents carry exactly the given title term.
func (ix *Index) CountTitle(ctx context.Context, term string) (int, error) {
	if err := ix.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := ix.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents WHERE title = ?`,
		names.SanitizeIdentifier(term)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: count title: %w: %w", apperr.ErrIndex, err)
	}
	return n, nil
}

// Count returns the number of documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	if err := ix.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := ix.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w: %w", apperr.ErrIndex, err)
	}
	return n, nil
}

// Checksums returns the stored checksum for every document, keyed by id.
func (ix *Index) Checksums(ctx context.Context) (map[string]string, error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := ix.conn.QueryContext(ctx, `SELECT title, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w: %w", apperr.ErrIndex, err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Checksum returns the stored checksum for id and whether a document exists.
func (ix *Index) Checksum(ctx context.Context, id string) (string, bool, error) {
	if err := ix.checkOpen(); err != nil {
		return "", false, err
	}
	var cs string
	err := ix.conn.QueryRowContext(ctx, `SELECT checksum FROM documents WHERE title = ?`,
		names.SanitizeIdentifier(id)).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: checksum: %w: %w", apperr.ErrIndex, err)
	}
	return cs, true, nil
}

// IDs returns every indexed note id.
func (ix *Index) IDs(ctx context.Context) (map[string]struct{}, error) {
	sums, err := ix.Checksums(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(sums))
	for id := range sums {
		out[id] = struct{}{}
	}
	return out, nil
}

// Backlinks returns all note ids that link to the given target.
func (ix *Index) Backlinks(ctx context.Context, target string) ([]string, error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := ix.conn.QueryContext(ctx, `SELECT source FROM links WHERE target = ? ORDER BY source`,
		names.SanitizeIdentifier(target))
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w: %w", apperr.ErrIndex, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Links returns every link edge in the index.
func (ix *Index) Links(ctx context.Context) ([]Link, error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := ix.conn.QueryContext(ctx, `SELECT source, target FROM links ORDER BY source, target`)
	if err != nil {
		return nil, fmt.Errorf("index: links: %w: %w", apperr.ErrIndex, err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
