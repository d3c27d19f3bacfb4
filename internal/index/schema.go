// Package index provides the per-vault SQLite search index with optional FTS5 full-text search.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

const (
	// DirName is the index directory inside a vault root.
	DirName = ".index"

	// SchemaVersion is stored in PRAGMA user_version and fixed for the life of an index.
	SchemaVersion = 1

	dbFile = "notes.db"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	title      TEXT PRIMARY KEY,
	content    TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	UNIQUE(source, target)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
`

// State is the lifecycle stage of an index handle.
type State int32

const (
	StateUninitialized State = iota
	StateCreated
	StateOpen
	StateClosed
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateDeleted:
		return "deleted"
	default:
		return "uninitialized"
	}
}

// Index is a single vault's search index. Writes are serialized by an internal
// mutex; reads may run concurrently.
type Index struct {
	mu    sync.Mutex // single writer
	conn  *sql.DB
	dir   string
	state atomic.Int32
}

// Create creates a new index in dir, making the parent directories first. An
// index that already exists there is reused only when its schema matches.
func Create(ctx context.Context, dir string) (*Index, error) {
	if dir == "" {
		return nil, fmt.Errorf("index: create: %w: empty path", apperr.ErrIndexCreation)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("index: create parent: %w: %w", apperr.ErrIndexCreation, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create dir: %w: %w", apperr.ErrIndexCreation, err)
	}

	_, statErr := os.Stat(filepath.Join(dir, dbFile))
	existed := statErr == nil

	ix, err := connect(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("index: create: %w: %w", apperr.ErrIndexCreation, err)
	}
	if existed {
		if err := ix.checkVersion(ctx); err != nil {
			ix.conn.Close()
			return nil, err
		}
	} else if err := ix.applySchema(ctx); err != nil {
		ix.conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w: %w", apperr.ErrIndexCreation, err)
	}
	ix.state.Store(int32(StateCreated))
	ix.state.Store(int32(StateOpen))
	return ix, nil
}

// Open opens the existing index in dir after verifying its schema version.
func Open(ctx context.Context, dir string) (*Index, error) {
	if _, err := os.Stat(filepath.Join(dir, dbFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("index: open %s: %w", dir, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("index: open: %w: %w", apperr.ErrIO, err)
	}
	ix, err := connect(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("index: open: %w: %w", apperr.ErrIndexCreation, err)
	}
	if err := ix.checkVersion(ctx); err != nil {
		ix.conn.Close()
		return nil, err
	}
	ix.state.Store(int32(StateOpen))
	return ix, nil
}

func connect(ctx context.Context, dir string) (*Index, error) {
	dsn := filepath.Join(dir, dbFile)
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Index{conn: conn, dir: dir}, nil
}

func (ix *Index) applySchema(ctx context.Context) error {
	if _, err := ix.conn.ExecContext(ctx, coreSchemaSQL); err != nil {
		return err
	}
	if err := initFTS(ix.conn); err != nil {
		return err
	}
	_, err := ix.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion))
	return err
}

func (ix *Index) checkVersion(ctx context.Context) error {
	var v int
	if err := ix.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return fmt.Errorf("index: read schema version: %w: %w", apperr.ErrIndexCreation, err)
	}
	if v != SchemaVersion {
		return fmt.Errorf("index: %w: schema version %d, want %d", apperr.ErrIndexCreation, v, SchemaVersion)
	}
	return nil
}

// Dir returns the directory holding the index files.
func (ix *Index) Dir() string {
	return ix.dir
}

// State returns the current lifecycle state.
func (ix *Index) State() State {
	return State(ix.state.Load())
}

func (ix *Index) checkOpen() error {
	if ix.State() != StateOpen {
		return apperr.ErrClosed
	}
	return nil
}

// Close releases the underlying database handle. It is safe to call twice.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.State() != StateOpen {
		return nil
	}
	ix.state.Store(int32(StateClosed))
	return ix.conn.Close()
}

// Drop closes the index and removes its directory.
func (ix *Index) Drop() error {
	if err := ix.Close(); err != nil {
		return fmt.Errorf("index: close: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := os.RemoveAll(ix.dir); err != nil {
		return fmt.Errorf("index: remove: %w: %w", apperr.ErrIO, err)
	}
	ix.state.Store(int32(StateDeleted))
	return nil
}
