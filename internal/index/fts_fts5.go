//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			title,
			content,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, title, content string) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE title = ?`, title); err != nil {
		return fmt.Errorf("clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO documents_fts (title, content) VALUES (?, ?)`, title, content)
	if err != nil {
		return fmt.Errorf("upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, title string) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE title = ?`, title); err != nil {
		return fmt.Errorf("delete fts: %w", err)
	}
	return nil
}

// phrase quotes q as a single FTS5 phrase so user input never reaches the query syntax.
func phrase(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

// Search performs an FTS5 full-text search over title and content.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := ix.conn.QueryContext(ctx, `
		SELECT title,
		       snippet(documents_fts, 1, '<b>', '</b>', '...', 32)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, phrase(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w: %w", apperr.ErrIndex, err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
