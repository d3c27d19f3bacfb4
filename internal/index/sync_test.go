package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	ctx := context.Background()
	vaultDir, store, ix := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("alpha [[b]]"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "b.md"), []byte("beta"), 0o644)
	_ = ix.Upsert(ctx, "stale", "no file behind this")

	if err := Sync(ctx, ix, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	n, _ := ix.Count(ctx)
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
	if has(ix, "stale") {
		t.Error("stale document not removed")
	}
	if bl, _ := ix.Backlinks(ctx, "b"); len(bl) != 1 || bl[0] != "a" {
		t.Errorf("backlinks = %v, want [a]", bl)
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	vaultDir, store, ix := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(vaultDir, "same.md"), []byte("same"), 0o644)
	_ = Sync(ctx, ix, store, logger)

	var before string
	_ = ix.conn.QueryRow(`SELECT updated_at FROM documents WHERE title = 'same'`).Scan(&before)
	_ = Sync(ctx, ix, store, logger)
	var after string
	_ = ix.conn.QueryRow(`SELECT updated_at FROM documents WHERE title = 'same'`).Scan(&after)
	if before == "" || before != after {
		t.Errorf("unchanged file re-indexed: %q -> %q", before, after)
	}
}

func TestSync_IgnoresFilesWithInvalidNames(t *testing.T) {
	ctx := context.Background()
	vaultDir, store, ix := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(vaultDir, "my note.md"), []byte("spaced"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "mynote.md"), []byte("canonical"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "my!note.md"), []byte("bang"), 0o644)

	if err := Sync(ctx, ix, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	ids, _ := ix.IDs(ctx)
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want only mynote", ids)
	}
	if _, ok := ids["mynote"]; !ok {
		t.Errorf("ids = %v, want mynote", ids)
	}

	metas, _ := store.List("")
	if len(metas) != len(ids) {
		t.Errorf("listed %d notes, indexed %d", len(metas), len(ids))
	}
	results, _ := ix.Search(ctx, "canonical", 10)
	if len(results) != 1 || results[0].ID != "mynote" {
		t.Errorf("search = %+v, want the canonical file's content", results)
	}
}
