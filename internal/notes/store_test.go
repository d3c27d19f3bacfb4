package notes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/testutil"
	"github.com/starford/ansuz/internal/vault"
)

var discard = testutil.Logger()

func newStore(t *testing.T, opts ...Option) (*Store, *vault.Vault) {
	t.Helper()
	v := testutil.TestVault(t, "Demo")
	return New(v, append([]Option{WithLogger(discard)}, opts...)...), v
}

// failingIndex wraps a real index and fails writes on demand.
type failingIndex struct {
	index.NoteIndex
	failUpsert bool
	failDelete bool
}

func (f *failingIndex) Upsert(ctx context.Context, id, content string) error {
	if f.failUpsert {
		return &apperr.IndexError{Op: "upsert", ID: id, Err: errors.New("disk full")}
	}
	return f.NoteIndex.Upsert(ctx, id, content)
}

func (f *failingIndex) Delete(ctx context.Context, id string) error {
	if f.failDelete {
		return &apperr.IndexError{Op: "delete", ID: id, Err: errors.New("disk full")}
	}
	return f.NoteIndex.Delete(ctx, id)
}

func TestEndToEnd_DemoVault(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	note, err := s.Create(ctx, "", "Hello world example with [[Link]]")
	require.NoError(t, err)
	require.Equal(t, "Hello-world-example", note.ID)
	require.Contains(t, note.Title, "untitled_")
	require.FileExists(t, filepath.Join(v.NotesDir(), "Hello-world-example.md"))

	n, err := v.Index().CountTitle(ctx, "Hello-world-example")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	total, _ := v.Index().Count(ctx)
	require.Equal(t, 1, total)

	require.NoError(t, s.Delete(ctx, "Hello-world-example"))
	require.NoFileExists(t, filepath.Join(v.NotesDir(), "Hello-world-example.md"))
	n, _ = v.Index().CountTitle(ctx, "Hello-world-example")
	require.Zero(t, n)
}

func TestCreate_TitleWinsAndContentIsNormalized(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	note, err := s.Create(ctx, "My Note!", "  first\n\n  second\tline ")
	require.NoError(t, err)
	require.Equal(t, "MyNote", note.ID)
	require.Equal(t, "My Note!", note.Title)

	data, err := os.ReadFile(filepath.Join(v.NotesDir(), "MyNote.md"))
	require.NoError(t, err)
	require.Equal(t, "first second line", string(data))

	got, err := s.Read(ctx, "MyNote")
	require.NoError(t, err)
	require.Equal(t, "first second line", got)
}

func TestCreate_Errors(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "", "!!! ??? ...")
	require.ErrorIs(t, err, apperr.ErrInvalidName)

	_, err = s.Create(ctx, "dup", "one")
	require.NoError(t, err)
	_, err = s.Create(ctx, "dup", "two")
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = s.Create(ctx, "empty", "   ")
	require.ErrorIs(t, err, apperr.ErrWriteVerification)
	require.NoFileExists(t, filepath.Join(v.NotesDir(), "empty.md"))
	ok, _ := v.Index().Has(ctx, "empty")
	require.False(t, ok)
}

func TestCreate_IndexFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	v := testutil.TestVault(t, "partial")
	fi := &failingIndex{NoteIndex: v.Index(), failUpsert: true}
	s := New(v, WithLogger(discard), WithIndex(fi))

	note, err := s.Create(ctx, "kept", "body text")
	require.Error(t, err)
	require.True(t, apperr.IsPartial(err))
	require.ErrorIs(t, err, apperr.ErrIndex)
	require.NotNil(t, note)
	require.FileExists(t, filepath.Join(v.NotesDir(), "kept.md"))

	fi.failUpsert = false
	require.NoError(t, s.Reindex(ctx, "kept"))
	ok, err := v.Index().Has(ctx, "kept")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRead_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Read(context.Background(), "missing")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Read(context.Background(), "***")
	require.ErrorIs(t, err, apperr.ErrInvalidName)
}

func TestGet_LinksAndBacklinks(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, err := s.Create(ctx, "hub", "central #topic")
	require.NoError(t, err)
	_, err = s.Create(ctx, "spoke", "points to [[hub]]")
	require.NoError(t, err)

	hub, err := s.Get(ctx, "hub")
	require.NoError(t, err)
	require.Equal(t, "hub", hub.Title)
	require.Equal(t, []string{"topic"}, hub.Tags)
	require.Equal(t, []string{"spoke"}, hub.Backlinks)

	spoke, err := s.Get(ctx, "spoke")
	require.NoError(t, err)
	require.Equal(t, []string{"hub"}, spoke.Links)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "draft", "v1")
	require.NoError(t, err)

	note, err := s.Update(ctx, "draft", "", "v2 text")
	require.NoError(t, err)
	require.Equal(t, "draft", note.ID)
	got, _ := s.Read(ctx, "draft")
	require.Equal(t, "v2 text", got)

	note, err = s.Update(ctx, "draft", "final", "v3 text")
	require.NoError(t, err)
	require.Equal(t, "final", note.ID)
	require.NoFileExists(t, filepath.Join(v.NotesDir(), "draft.md"))
	ok, _ := v.Index().Has(ctx, "draft")
	require.False(t, ok)
	ok, _ = v.Index().Has(ctx, "final")
	require.True(t, ok)

	_, err = s.Update(ctx, "final", "", "  ")
	require.ErrorIs(t, err, apperr.ErrWriteVerification)
	got, _ = s.Read(ctx, "final")
	require.Equal(t, "v3 text", got, "a rejected update leaves the note alone")

	_, err = s.Update(ctx, "nope", "", "x")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete_TotalAndIrreversible(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "bye", "to be removed [[other]]")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "bye"))

	_, err = s.Read(ctx, "bye")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	ok, _ := v.Index().Has(ctx, "bye")
	require.False(t, ok)
	bl, _ := v.Index().Backlinks(ctx, "other")
	require.Empty(t, bl)

	require.NoError(t, s.Delete(ctx, "bye"), "absence is tolerated")
}

func TestDelete_IndexFailureKeepsFileGone(t *testing.T) {
	ctx := context.Background()
	v := testutil.TestVault(t, "partial")
	fi := &failingIndex{NoteIndex: v.Index()}
	s := New(v, WithLogger(discard), WithIndex(fi))

	_, err := s.Create(ctx, "doomed", "content")
	require.NoError(t, err)

	fi.failDelete = true
	err = s.Delete(ctx, "doomed")
	require.True(t, apperr.IsPartial(err))
	require.NoFileExists(t, filepath.Join(v.NotesDir(), "doomed.md"))
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "old", "renamed body")
	require.NoError(t, err)
	_, err = s.Create(ctx, "taken", "occupied")
	require.NoError(t, err)

	note, err := s.Rename(ctx, "old", "Brand New")
	require.NoError(t, err)
	require.Equal(t, "BrandNew", note.ID)
	require.NoFileExists(t, filepath.Join(v.NotesDir(), "old.md"))
	require.FileExists(t, filepath.Join(v.NotesDir(), "BrandNew.md"))

	ok, _ := v.Index().Has(ctx, "old")
	require.False(t, ok)
	ok, _ = v.Index().Has(ctx, "BrandNew")
	require.True(t, ok)

	_, err = s.Rename(ctx, "BrandNew", "taken")
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)
	_, err = s.Rename(ctx, "ghost", "anything")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	same, err := s.Rename(ctx, "BrandNew", "Brand New")
	require.NoError(t, err)
	require.Equal(t, "BrandNew", same.ID)
}

func TestListAndRenderHTML(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, _ = s.Create(ctx, "b", "**bold** text")
	_, _ = s.Create(ctx, "a", "plain <script>alert(1)</script>")

	ids, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids)

	html, err := s.RenderHTML(ctx, "b")
	require.NoError(t, err)
	require.Contains(t, html, "<strong>bold</strong>")

	html, err = s.RenderHTML(ctx, "a")
	require.NoError(t, err)
	require.NotContains(t, html, "<script>")

	_, err = s.RenderHTML(ctx, "zzz")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSearchAndGraph(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	_, _ = s.Create(ctx, "one", "searchable needle [[two]]")
	_, _ = s.Create(ctx, "two", "hay only")

	hits, err := s.Search(ctx, "needle", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "one", hits[0].ID)

	g, err := s.Graph(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"one", "two"}, g.Nodes())
	require.Len(t, g.Edges(), 1)
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var got []string
	s, _ := newStore(t, WithNotifier(func(kind, vaultName, id string) {
		mu.Lock()
		got = append(got, kind+":"+vaultName+":"+id)
		mu.Unlock()
	}))

	_, _ = s.Create(ctx, "n", "x")
	_, _ = s.Update(ctx, "n", "", "y")
	_, _ = s.Rename(ctx, "n", "m")
	_ = s.Delete(ctx, "m")

	require.Equal(t, []string{
		"created:Demo:n",
		"updated:Demo:n",
		"renamed:Demo:m",
		"deleted:Demo:m",
	}, got)
}

func TestMetadataRecorded(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "Tagged Note", "body #alpha [[x]]")
	require.NoError(t, err)

	m, ok, err := v.Metadata().Get("TaggedNote")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Tagged Note", m.Title)
	require.Equal(t, []string{"alpha"}, m.Tags)
	require.False(t, m.CreatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, "TaggedNote"))
	_, ok, _ = v.Metadata().Get("TaggedNote")
	require.False(t, ok)
}

func TestRenameKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	s, v := newStore(t)

	_, err := s.Create(ctx, "first", "kept body")
	require.NoError(t, err)
	before, ok, err := v.Metadata().Get("first")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Update(ctx, "first", "", "edited body")
	require.NoError(t, err)
	_, err = s.Rename(ctx, "first", "second")
	require.NoError(t, err)
	_, err = s.Update(ctx, "second", "third", "moved again")
	require.NoError(t, err)

	after, ok, err := v.Metadata().Get("third")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, before.CreatedAt.Equal(after.CreatedAt),
		"created_at changed: %v -> %v", before.CreatedAt, after.CreatedAt)
	require.True(t, after.UpdatedAt.After(before.CreatedAt) || after.UpdatedAt.Equal(before.CreatedAt))
}

func TestFilesWithInvalidNamesAreNotNotes(t *testing.T) {
	ctx := context.Background()
	m := testutil.TestManager(t)
	v, err := m.Create(ctx, "outside")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(v.NotesDir(), "my note.md"), []byte("edited elsewhere"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(v.NotesDir(), "plain.md"), []byte("fine"), 0o644))

	require.NoError(t, m.Close())
	v, err = m.Open(ctx, "outside")
	require.NoError(t, err)
	s := New(v, WithLogger(discard))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"plain"}, ids)

	indexed, err := v.Index().IDs(ctx)
	require.NoError(t, err)
	require.Len(t, indexed, len(ids))
	require.Contains(t, indexed, "plain")

	_, err = s.Read(ctx, "my note")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.FileExists(t, filepath.Join(v.NotesDir(), "my note.md"), "stray files are left alone")
}
