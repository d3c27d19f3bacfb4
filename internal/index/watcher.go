package index

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// settleDelay is how long a file must be quiet before the watcher looks at it.
// Editors often write a file several times in a row.
const settleDelay = 100 * time.Millisecond

// Watch keeps the index in step with edits made outside the note store until
// ctx is cancelled. Only top-level .md files in the store root are considered,
// so the index directory is never watched.
//
// Events only mark an id as dirty. Once the burst settles, each dirty id is
// compared against the index: a new file is upserted ("created"), a file whose
// checksum moved is upserted ("updated") and a missing file is removed
// ("deleted"). Changes the index already reflects, such as the store's own
// writes, produce no callback. An event queue overflow triggers a full Sync.
func Watch(ctx context.Context, ix NoteIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	dirty := make(map[string]string) // file name -> id
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-settle.C:
			for name, id := range dirty {
				kind, err := reconcile(ctx, ix, store, name, id)
				if err != nil {
					logger.Warn("watcher: reconcile failed", slog.String("id", id), slog.String("error", err.Error()))
					continue
				}
				if kind == "" {
					continue
				}
				logger.Debug("watcher: applied", slog.String("id", id), slog.String("op", kind))
				if cb != nil {
					cb(kind, id)
				}
			}
			clear(dirty)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := noteID(root, ev.Name)
			if ok {
				dirty[filepath.Base(ev.Name)] = id
				settle.Reset(settleDelay)
			} else if id != "" {
				logger.Warn("watcher: ignoring note file with invalid name", slog.String("path", ev.Name))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(watchErr, fsnotify.ErrEventOverflow) {
				logger.Warn("watcher: events dropped, resyncing")
				if err := Sync(ctx, ix, store, logger); err != nil {
					logger.Warn("watcher: resync incomplete", slog.String("error", err.Error()))
				}
				continue
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// noteID maps an event path to a note id using the same rule as the store's
// listing. Paths outside the root directory, non-notes and temp files are
// rejected. A rejected .md file with an invalid stem still reports the stem.
func noteID(root, path string) (string, bool) {
	if filepath.Dir(path) != root {
		return "", false
	}
	return models.NoteID(filepath.Base(path))
}

// reconcile brings the index document for id in line with the file name and
// returns the kind of change made, or "" when there was nothing to do.
func reconcile(ctx context.Context, ix NoteIndex, store storage.Provider, name, id string) (string, error) {
	stored, indexed, err := ix.Checksum(ctx, id)
	if err != nil {
		return "", err
	}

	data, err := store.Read(name)
	if err != nil {
		exists, _, statErr := store.Stat(name)
		if statErr != nil || exists {
			return "", err
		}
		if !indexed {
			return "", nil
		}
		if err := ix.Delete(ctx, id); err != nil {
			return "", err
		}
		return "deleted", nil
	}

	if indexed && stored == checksum.Sum(data) {
		return "", nil
	}
	if err := ix.Upsert(ctx, id, string(data)); err != nil {
		return "", err
	}
	if indexed {
		return "updated", nil
	}
	return "created", nil
}
