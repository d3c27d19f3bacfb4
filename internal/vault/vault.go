// Package vault manages named vault directories under a storage root, each
// owning its own search index.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/names"
	"github.com/starford/ansuz/internal/storage"
)

// StorageRoot is the directory under which vaults are created.
type StorageRoot string

// MetadataFile is the per-note metadata document in a vault directory. It sits
// outside the index directory so rebuilding the index keeps it.
const MetadataFile = "." + metadata.FileName

// WatchFunc is told about every change a file watcher applies to a vault's index.
type WatchFunc func(kind, vaultName, id string)

// createIndex is replaced in tests to simulate index creation failures.
var createIndex = index.Create

// Vault is an open vault. It exclusively owns its index handle.
type Vault struct {
	name  string
	path  string
	idx   *index.Index
	fs    *storage.FS
	meta  *metadata.FileStore
	close sync.Once

	stopWatch context.CancelFunc
	watchDone chan struct{}

	// mu serializes multi-step note mutations (file then index).
	mu sync.Mutex
}

// Lock acquires the vault's mutation lock.
func (v *Vault) Lock() { v.mu.Lock() }

// Unlock releases the vault's mutation lock.
func (v *Vault) Unlock() { v.mu.Unlock() }

// Name returns the sanitized vault name.
func (v *Vault) Name() string { return v.name }

// Path returns the vault directory.
func (v *Vault) Path() string { return v.path }

// NotesDir returns the directory notes are stored in.
func (v *Vault) NotesDir() string { return v.path }

// Index returns the vault's search index.
func (v *Vault) Index() *index.Index { return v.idx }

// Storage returns the file provider rooted at the notes directory.
func (v *Vault) Storage() *storage.FS { return v.fs }

// Metadata returns the per-note metadata store.
func (v *Vault) Metadata() *metadata.FileStore { return v.meta }

// Close stops the vault's watcher, if any, and closes the index handle.
func (v *Vault) Close() error {
	var err error
	v.close.Do(func() {
		v.stopWatching()
		err = v.idx.Close()
	})
	return err
}

// stopWatching cancels the watcher and waits for it to return.
func (v *Vault) stopWatching() {
	if v.stopWatch == nil {
		return
	}
	v.stopWatch()
	<-v.watchDone
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// Manager creates, opens, lists and deletes vaults under one storage root.
type Manager struct {
	root   string
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*Vault

	watchCtx context.Context // nil until Watch is called
	watchFn  WatchFunc
}

// NewManager returns a Manager rooted at root.
func NewManager(root StorageRoot, opts ...Option) *Manager {
	m := &Manager{
		root:   string(root),
		logger: slog.Default(),
		open:   make(map[string]*Vault),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the storage root.
func (m *Manager) Root() string {
	return m.root
}

func indexDir(vaultPath string) string {
	return filepath.Join(vaultPath, index.DirName)
}

// Create makes the vault directory and a fresh index. A vault that already
// exists keeps its notes; its index is rebuilt from them.
func (m *Manager) Create(ctx context.Context, name string) (*Vault, error) {
	n := names.SanitizeIdentifier(name)
	if n == "" {
		return nil, fmt.Errorf("vault: create %q: %w", name, apperr.ErrInvalidName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create root: %w: %w", apperr.ErrIO, err)
	}
	path := filepath.Join(m.root, n)
	_, statErr := os.Stat(path)
	existed := statErr == nil
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("vault: create %s: %w: %w", n, apperr.ErrIO, err)
	}

	if prev, ok := m.open[n]; ok {
		if err := prev.Close(); err != nil {
			m.logger.Warn("vault: close previous handle", slog.String("vault", n), slog.String("error", err.Error()))
		}
		delete(m.open, n)
	}

	dir := indexDir(path)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("vault: remove old index: %w: %w", apperr.ErrIndexCreation, err)
	}
	ix, err := createIndex(ctx, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		if !existed {
			_ = os.RemoveAll(path)
		}
		return nil, fmt.Errorf("vault: create %s: %w", n, err)
	}

	v, err := m.assemble(n, path, ix)
	if err != nil {
		return nil, err
	}
	if existed {
		m.sync(ctx, v)
	}
	m.open[n] = v
	m.startWatcher(v)
	m.logger.Info("vault: created", slog.String("vault", n), slog.String("path", path))
	return v, nil
}

// Open returns the open vault called name, opening its index when needed. A
// missing index is created and filled from the notes on disk.
func (m *Manager) Open(ctx context.Context, name string) (*Vault, error) {
	n := names.SanitizeIdentifier(name)
	if n == "" {
		return nil, fmt.Errorf("vault: open %q: %w", name, apperr.ErrInvalidName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.open[n]; ok {
		return v, nil
	}

	path := filepath.Join(m.root, n)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("vault: open %s: %w", n, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w: %w", n, apperr.ErrIO, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: open %s: %w", n, apperr.ErrNotFound)
	}

	ix, err := index.Open(ctx, indexDir(path))
	if errors.Is(err, apperr.ErrNotFound) {
		ix, err = createIndex(ctx, indexDir(path))
	}
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", n, err)
	}

	v, err := m.assemble(n, path, ix)
	if err != nil {
		return nil, err
	}
	m.sync(ctx, v)
	m.open[n] = v
	m.startWatcher(v)
	m.logger.Info("vault: opened", slog.String("vault", n))
	return v, nil
}

func (m *Manager) assemble(name, path string, ix *index.Index) (*Vault, error) {
	fs, err := storage.NewFS(path)
	if err != nil {
		_ = ix.Close()
		return nil, fmt.Errorf("vault: storage %s: %w", name, err)
	}
	return &Vault{
		name: name,
		path: path,
		idx:  ix,
		fs:   fs,
		meta: metadata.NewFileStore(filepath.Join(path, MetadataFile)),
	}, nil
}

// Watch keeps the index of every open vault, and of every vault opened or
// created later, in step with edits made outside the note store until ctx is
// done or the vault is closed. fn may be nil.
func (m *Manager) Watch(ctx context.Context, fn WatchFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchCtx, m.watchFn = ctx, fn
	for _, v := range m.open {
		m.startWatcher(v)
	}
}

// startWatcher runs a file watcher bound to v's current index. Callers hold m.mu.
func (m *Manager) startWatcher(v *Vault) {
	if m.watchCtx == nil || v.stopWatch != nil {
		return
	}
	ctx, cancel := context.WithCancel(m.watchCtx)
	v.stopWatch, v.watchDone = cancel, make(chan struct{})

	fn := m.watchFn
	logger := m.logger.With(slog.String("vault", v.name))
	go func() {
		defer close(v.watchDone)
		err := index.Watch(ctx, v.idx, v.fs, logger, func(kind, id string) {
			if fn != nil {
				fn(kind, v.name, id)
			}
		})
		if err != nil {
			logger.Error("vault: watcher stopped", slog.String("error", err.Error()))
		}
	}()
}

func (m *Manager) sync(ctx context.Context, v *Vault) {
	if err := index.Sync(ctx, v.idx, v.fs, m.logger); err != nil {
		m.logger.Warn("vault: sync incomplete", slog.String("vault", v.name), slog.String("error", err.Error()))
	}
}

// Delete closes any open handle and removes the vault directory recursively.
// A vault that does not exist is not an error.
func (m *Manager) Delete(_ context.Context, name string) error {
	n := names.SanitizeIdentifier(name)
	if n == "" {
		return fmt.Errorf("vault: delete %q: %w", name, apperr.ErrInvalidName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.open[n]; ok {
		delete(m.open, n)
		v.stopWatching()
		if err := v.idx.Drop(); err != nil {
			m.logger.Warn("vault: drop index", slog.String("vault", n), slog.String("error", err.Error()))
		}
	}
	if err := os.RemoveAll(filepath.Join(m.root, n)); err != nil {
		return fmt.Errorf("vault: delete %s: %w: %w", n, apperr.ErrIO, err)
	}
	m.logger.Info("vault: deleted", slog.String("vault", n))
	return nil
}

// List returns the names of the entries directly under the storage root. A
// missing root yields an empty list.
func (m *Manager) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w: %w", apperr.ErrIO, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// Close closes every open vault.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for n, v := range m.open {
		if err := v.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vault: close %s: %w", n, err))
		}
		delete(m.open, n)
	}
	return errors.Join(errs...)
}
