// Package metadata keeps derived per-note facts (title, tags, links, timestamps)
// next to a vault's index.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/ansuz/internal/apperr"
)

// FileName is the base name of a metadata document.
const FileName = "metadata.json"

// Metadata describes one note.
type Metadata struct {
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	Links     []string  `json:"links,omitempty"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists Metadata keyed by note id.
type Store interface {
	Get(id string) (Metadata, bool, error)
	Put(id string, m Metadata) error
	Delete(id string) error
}

// FileStore is a Store backed by a single JSON document that is replaced
// atomically on every write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a FileStore at path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() (map[string]Metadata, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: read: %w: %w", apperr.ErrIO, err)
	}
	out := map[string]Metadata{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("metadata: decode %s: %w", s.path, err)
	}
	return out, nil
}

func (s *FileStore) save(all map[string]Metadata) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: encode: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("metadata: write: %w: %w", apperr.ErrIO, err)
	}
	return nil
}

// Get returns the metadata for id and whether it exists.
func (s *FileStore) Get(id string) (Metadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return Metadata{}, false, err
	}
	m, ok := all[id]
	return m, ok, nil
}

// Put stores m under id. A zero CreatedAt inherits the previous value.
func (s *FileStore) Put(id string, m Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	if prev, ok := all[id]; ok && m.CreatedAt.IsZero() {
		m.CreatedAt = prev.CreatedAt
	}
	all[id] = m
	return s.save(all)
}

// Delete removes id. Missing ids are ignored.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[id]; !ok {
		return nil
	}
	delete(all, id)
	return s.save(all)
}
