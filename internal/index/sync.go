package index

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/ansuz/internal/storage"
)

// Sync walks the vault and brings the index up to date. It sees exactly the
// notes store.List reports, so files that are not addressable by id are never
// indexed:
//   - new/changed files are upserted
//   - documents whose file is gone are deleted
//
// It keeps going past individual failures and returns them joined.
func Sync(ctx context.Context, ix NoteIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := ix.Checksums(ctx)
	if err != nil {
		return err
	}

	var errs []error
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		key := m.ID
		disk[key] = struct{}{}

		if checksums[key] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		if err := ix.Upsert(ctx, key, string(data)); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			errs = append(errs, err)
		} else {
			logger.Debug("sync: indexed", slog.String("id", key))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := ix.Delete(ctx, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			errs = append(errs, err)
		} else {
			logger.Debug("sync: removed stale", slog.String("id", id))
		}
	}

	return errors.Join(errs...)
}
