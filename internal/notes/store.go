// Package notes implements the note store: every mutation writes the file first
// and then brings the vault's search index in line with it.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/metadata"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/names"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/vault"
)

// Event kinds passed to a Notifier.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
	EventRenamed = "renamed"
)

// Notifier is told about every committed note mutation.
type Notifier func(kind, vault, id string)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNotifier registers a listener for note events.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notify = n }
}

// WithMetadata replaces the vault's metadata store.
func WithMetadata(m metadata.Store) Option {
	return func(s *Store) { s.meta = m }
}

// WithIndex replaces the vault's index, e.g. with a failing one in tests.
func WithIndex(ix index.NoteIndex) Option {
	return func(s *Store) { s.ix = ix }
}

// Store performs note operations against one vault.
type Store struct {
	vault  string
	fs     storage.Provider
	ix     index.NoteIndex
	meta   metadata.Store
	lock   sync.Locker
	logger *slog.Logger
	notify Notifier
}

// New returns a Store for v.
func New(v *vault.Vault, opts ...Option) *Store {
	s := &Store{
		vault:  v.Name(),
		fs:     v.Storage(),
		ix:     v.Index(),
		meta:   v.Metadata(),
		lock:   v,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(id string) (string, error) {
	k := names.SanitizeIdentifier(id)
	if k == "" {
		return "", fmt.Errorf("notes: id %q: %w", id, apperr.ErrInvalidName)
	}
	return k, nil
}

func (s *Store) exists(id string) (bool, error) {
	ok, _, err := s.fs.Stat(models.FileName(id))
	return ok, err
}

// writeVerified writes body to id's file and checks it landed non-empty. An
// empty file is removed again.
func (s *Store) writeVerified(id, body string) error {
	file := models.FileName(id)
	if err := s.fs.Write(file, []byte(body)); err != nil {
		return fmt.Errorf("notes: write %s: %w", id, err)
	}
	ok, size, err := s.fs.Stat(file)
	if err != nil {
		return fmt.Errorf("notes: verify %s: %w", id, err)
	}
	if !ok || size == 0 {
		if ok {
			_ = s.fs.Delete(file)
		}
		return fmt.Errorf("notes: verify %s: %w", id, apperr.ErrWriteVerification)
	}
	return nil
}

// index upserts id and logs a failure. The returned error is an *apperr.IndexError.
func (s *Store) index(ctx context.Context, id, body string) error {
	if err := s.ix.Upsert(ctx, id, body); err != nil {
		s.logger.Error("notes: index failed",
			slog.String("vault", s.vault), slog.String("id", id), slog.String("error", err.Error()))
		return asIndexError("upsert", id, err)
	}
	return nil
}

func (s *Store) unindex(ctx context.Context, id string) error {
	if err := s.ix.Delete(ctx, id); err != nil {
		s.logger.Error("notes: unindex failed",
			slog.String("vault", s.vault), slog.String("id", id), slog.String("error", err.Error()))
		return asIndexError("delete", id, err)
	}
	return nil
}

func asIndexError(op, id string, err error) error {
	var ie *apperr.IndexError
	if errors.As(err, &ie) {
		return err
	}
	return &apperr.IndexError{Op: op, ID: id, Err: err}
}

// createdAt returns the recorded creation time of id, or the zero time.
func (s *Store) createdAt(id string) time.Time {
	if s.meta != nil {
		if m, ok, err := s.meta.Get(id); err == nil && ok {
			return m.CreatedAt
		}
	}
	return time.Time{}
}

// record stores metadata for id. A zero created time means the note is new.
func (s *Store) record(id, title, body string, created time.Time) {
	if s.meta == nil {
		return
	}
	doc := parser.Parse(body)
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	m := metadata.Metadata{
		Title:     title,
		Tags:      doc.Tags,
		Links:     doc.Links,
		Checksum:  checksum.String(body),
		CreatedAt: created,
		UpdatedAt: now,
	}
	if err := s.meta.Put(id, m); err != nil {
		s.logger.Warn("notes: metadata update failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

func (s *Store) forget(id string) {
	if s.meta == nil {
		return
	}
	if err := s.meta.Delete(id); err != nil {
		s.logger.Warn("notes: metadata delete failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

func (s *Store) title(id string) string {
	if s.meta != nil {
		if m, ok, err := s.meta.Get(id); err == nil && ok && m.Title != "" {
			return m.Title
		}
	}
	return id
}

func (s *Store) emit(kind, id string) {
	if s.notify != nil {
		s.notify(kind, s.vault, id)
	}
}

// Create writes a new note and indexes it. An empty title gets a generated
// display title and the id is derived from the content. When only indexing
// fails, the note is returned together with an *apperr.IndexError.
func (s *Store) Create(ctx context.Context, title, content string) (*models.Note, error) {
	display := strings.TrimSpace(title)
	if display == "" {
		display = names.UntitledTitle()
	}
	id := names.CanonicalID(title, content)
	if id == "" {
		return nil, fmt.Errorf("notes: create: %w", apperr.ErrInvalidName)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	ok, err := s.exists(id)
	if err != nil {
		return nil, fmt.Errorf("notes: create %s: %w", id, err)
	}
	if ok {
		return nil, fmt.Errorf("notes: create %s: %w", id, apperr.ErrAlreadyExists)
	}

	body := names.NormalizeWhitespace(content)
	if err := s.writeVerified(id, body); err != nil {
		return nil, err
	}
	s.logger.Info("notes: created", slog.String("vault", s.vault), slog.String("id", id))

	note := &models.Note{
		ID:        id,
		Title:     display,
		Content:   body,
		Links:     parser.LinkTargets(body),
		Checksum:  checksum.String(body),
		UpdatedAt: time.Now().UTC(),
	}
	idxErr := s.index(ctx, id, body)
	s.record(id, display, body, time.Time{})
	s.emit(EventCreated, id)
	return note, idxErr
}

// Read returns the raw content of the note.
func (s *Store) Read(_ context.Context, id string) (string, error) {
	k, err := key(id)
	if err != nil {
		return "", err
	}
	data, err := s.fs.Read(models.FileName(k))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("notes: read %s: %w", k, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("notes: read %s: %w", k, err)
	}
	return string(data), nil
}

// Get returns the note with its tags, outgoing links and backlinks.
func (s *Store) Get(ctx context.Context, id string) (*models.Note, error) {
	content, err := s.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	k := names.SanitizeIdentifier(id)
	note := &models.Note{
		ID:       k,
		Title:    s.title(k),
		Content:  content,
		Checksum: checksum.String(content),
	}
	doc := parser.Parse(content)
	note.Tags = doc.Tags
	note.Links = doc.Links
	if note.Title == k && doc.Title != "" {
		note.Title = doc.Title
	}
	if s.meta != nil {
		if m, ok, err := s.meta.Get(k); err == nil && ok {
			note.UpdatedAt = m.UpdatedAt
		}
	}
	backlinks, err := s.ix.Backlinks(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("notes: backlinks %s: %w", k, err)
	}
	note.Backlinks = backlinks
	return note, nil
}

// Update replaces the content of a note. A non-empty title re-derives the id;
// when it changes the note moves: write new, remove old, unindex old, index new.
func (s *Store) Update(ctx context.Context, id, title, content string) (*models.Note, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	body := names.NormalizeWhitespace(content)
	if body == "" {
		return nil, fmt.Errorf("notes: update %s: %w", k, apperr.ErrWriteVerification)
	}
	newID := k
	display := s.title(k)
	if strings.TrimSpace(title) != "" {
		display = strings.TrimSpace(title)
		if newID = names.CanonicalID(title, content); newID == "" {
			return nil, fmt.Errorf("notes: update %s: %w", k, apperr.ErrInvalidName)
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	ok, err := s.exists(k)
	if err != nil {
		return nil, fmt.Errorf("notes: update %s: %w", k, err)
	}
	if !ok {
		return nil, fmt.Errorf("notes: update %s: %w", k, apperr.ErrNotFound)
	}

	var idxErr error
	if newID != k {
		taken, err := s.exists(newID)
		if err != nil {
			return nil, fmt.Errorf("notes: update %s: %w", newID, err)
		}
		if taken {
			return nil, fmt.Errorf("notes: update %s: %w", newID, apperr.ErrAlreadyExists)
		}
		if err := s.writeVerified(newID, body); err != nil {
			return nil, err
		}
		if err := s.fs.Delete(models.FileName(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("notes: update remove %s: %w", k, err)
		}
		idxErr = s.unindex(ctx, k)
		if err := s.index(ctx, newID, body); idxErr == nil {
			idxErr = err
		}
		created := s.createdAt(k)
		s.forget(k)
		s.record(newID, display, body, created)
		s.emit(EventRenamed, newID)
	} else {
		if err := s.writeVerified(k, body); err != nil {
			return nil, err
		}
		idxErr = s.index(ctx, k, body)
		s.record(k, display, body, s.createdAt(k))
		s.emit(EventUpdated, k)
	}
	s.logger.Info("notes: updated", slog.String("vault", s.vault), slog.String("id", newID))

	return &models.Note{
		ID:        newID,
		Title:     display,
		Content:   body,
		Links:     parser.LinkTargets(body),
		Checksum:  checksum.String(body),
		UpdatedAt: time.Now().UTC(),
	}, idxErr
}

// Delete removes the note file and then its index document. A missing file is
// tolerated. The file is never recreated, even if unindexing fails.
func (s *Store) Delete(ctx context.Context, id string) error {
	k, err := key(id)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	file := models.FileName(k)
	if err := s.fs.Delete(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("notes: delete %s: %w", k, err)
	}
	ok, err := s.exists(k)
	if err != nil {
		return fmt.Errorf("notes: delete %s: %w", k, err)
	}
	if ok {
		return fmt.Errorf("notes: delete %s: file still present: %w", k, apperr.ErrIO)
	}

	idxErr := s.unindex(ctx, k)
	s.forget(k)
	s.emit(EventDeleted, k)
	s.logger.Info("notes: deleted", slog.String("vault", s.vault), slog.String("id", k))
	return idxErr
}

// Rename moves a note to the id derived from newTitle and its content. The
// file moves first, then the old document is unindexed and the new one indexed.
func (s *Store) Rename(ctx context.Context, oldID, newTitle string) (*models.Note, error) {
	k, err := key(oldID)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.fs.Read(models.FileName(k))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("notes: rename %s: %w", k, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("notes: rename %s: %w", k, err)
	}
	content := string(data)

	newID := names.CanonicalID(newTitle, content)
	if newID == "" {
		return nil, fmt.Errorf("notes: rename %s: %w", k, apperr.ErrInvalidName)
	}
	display := strings.TrimSpace(newTitle)
	if display == "" {
		display = newID
	}
	note := &models.Note{
		ID:        newID,
		Title:     display,
		Content:   content,
		Links:     parser.LinkTargets(content),
		Checksum:  checksum.Sum(data),
		UpdatedAt: time.Now().UTC(),
	}

	if newID == k {
		idxErr := s.index(ctx, k, content)
		s.record(k, display, content, s.createdAt(k))
		return note, idxErr
	}

	taken, err := s.exists(newID)
	if err != nil {
		return nil, fmt.Errorf("notes: rename %s: %w", newID, err)
	}
	if taken {
		return nil, fmt.Errorf("notes: rename %s: %w", newID, apperr.ErrAlreadyExists)
	}
	if err := s.fs.Move(models.FileName(k), models.FileName(newID)); err != nil {
		return nil, fmt.Errorf("notes: rename %s -> %s: %w", k, newID, err)
	}

	idxErr := s.unindex(ctx, k)
	if err := s.index(ctx, newID, content); idxErr == nil {
		idxErr = err
	}
	created := s.createdAt(k)
	s.forget(k)
	s.record(newID, display, content, created)
	s.emit(EventRenamed, newID)
	s.logger.Info("notes: renamed", slog.String("vault", s.vault),
		slog.String("from", k), slog.String("to", newID))
	return note, idxErr
}

// List returns the ids of every note directly in the vault, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	metas, err := s.fs.List("")
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.ID)
	}
	sort.Strings(out)
	return out, nil
}

// RenderHTML returns the note rendered to sanitized HTML.
func (s *Store) RenderHTML(ctx context.Context, id string) (string, error) {
	content, err := s.Read(ctx, id)
	if err != nil {
		return "", err
	}
	return markdown.RenderHTML(content), nil
}

// Search runs a full-text query against the vault index.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.ix.Search(ctx, query, limit)
}

// Backlinks returns the ids of notes linking to id.
func (s *Store) Backlinks(ctx context.Context, id string) ([]string, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	return s.ix.Backlinks(ctx, k)
}

// Graph returns the vault's link graph.
func (s *Store) Graph(ctx context.Context) (*graph.Graph, error) {
	return graph.FromIndex(ctx, s.ix)
}

// Reindex retries only the indexing step for an existing note file.
func (s *Store) Reindex(ctx context.Context, id string) error {
	k, err := key(id)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.fs.Read(models.FileName(k))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("notes: reindex %s: %w", k, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("notes: reindex %s: %w", k, err)
	}
	return s.index(ctx, k, string(data))
}
