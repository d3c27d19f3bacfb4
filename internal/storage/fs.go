package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
)

// tmpPrefix marks in-flight writes; such files are never listed as notes.
const tmpPrefix = ".ansuz-tmp-"

const filePerm = 0o644

// FS implements Provider on the local file system.
type FS struct {
	root string // absolute, cleaned
}

var _ Provider = (*FS)(nil)

// NewFS returns an FS rooted at dir, which must be an existing directory.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w: %w", apperr.ErrIO, err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root %s: %w: not a directory", abs, apperr.ErrIO)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// resolve maps a vault-relative path to an absolute one inside the root.
func (f *FS) resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: %q: %w: absolute path", rel, apperr.ErrInvalidName)
	}
	abs := filepath.Join(f.root, rel)
	r, err := filepath.Rel(f.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: %q: %w: escapes vault root", rel, apperr.ErrInvalidName)
	}
	return abs, nil
}

// noteID reports the id of e when it is a note file. Dot files, which include
// in-flight temp files, are skipped. Markdown files whose stem is not a valid
// id are skipped with a warning.
func noteID(e os.DirEntry) (string, bool) {
	name := e.Name()
	if !e.Type().IsRegular() {
		return "", false
	}
	id, ok := models.NoteID(name)
	if !ok && id != "" {
		slog.Warn("storage: ignoring note file with invalid name", slog.String("file", name))
	}
	return id, ok
}

// List implements Provider.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w: %w", dir, apperr.ErrIO, err)
	}

	out := make([]models.NoteMetadata, 0, len(entries))
	for _, e := range entries {
		id, ok := noteID(e)
		if !ok {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w: %w", apperr.ErrIO, err)
		}
		p := filepath.Join(base, e.Name())
		sum, err := checksum.File(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w: %w", apperr.ErrIO, err)
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, models.NoteMetadata{
			ID:        id,
			Path:      rel,
			Checksum:  sum,
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read implements Provider. A missing file yields an error matching both
// os.ErrNotExist and apperr.ErrIO.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w: %w", path, apperr.ErrIO, err)
	}
	return data, nil
}

// Stat implements Provider.
func (f *FS) Stat(path string) (bool, int64, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return false, 0, err
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, 0, nil
	case err != nil:
		return false, 0, fmt.Errorf("storage: stat %s: %w: %w", path, apperr.ErrIO, err)
	}
	return true, info.Size(), nil
}

// Write implements Provider: temp file in the same directory, fsync, chmod,
// then rename over the target.
func (f *FS) Write(path string, content []byte) (err error) {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w: %w", apperr.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w: %w", apperr.ErrIO, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	steps := []struct {
		what string
		fn   func() error
	}{
		{"write temp", func() error { _, e := tmp.Write(content); return e }},
		{"fsync", tmp.Sync},
		{"close temp", tmp.Close},
		{"chmod", func() error { return os.Chmod(tmp.Name(), filePerm) }},
		{"rename", func() error { return os.Rename(tmp.Name(), abs) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("storage: %s %s: %w: %w", step.what, path, apperr.ErrIO, err)
		}
	}
	return nil
}

// Delete implements Provider.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w: %w", path, apperr.ErrIO, err)
	}
	return nil
}

// Move implements Provider.
func (f *FS) Move(oldPath, newPath string) error {
	from, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	to, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("storage: move %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("storage: move %s -> %s: %w: %w", oldPath, newPath, apperr.ErrIO, err)
	}
	return nil
}
