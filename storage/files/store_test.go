package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestNew_CreatesLayout(t *testing.T) {
	s := newTestStore(t)
	for _, dir := range []string{UploadsDir, OutputsDir, MarkersDir, EmbedsDir} {
		info, err := os.Stat(filepath.Join(s.Root(), dir))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err := New("")
	assert.Error(t, err)
}

func TestStore_UploadLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	content := "a,b\n1,2\n"

	size, checksum, err := s.CreateUpload(ctx, id, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
	assert.Equal(t, core.ChecksumOf([]byte(content)), checksum)

	exists, err := s.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	blob, n, err := s.OpenUpload(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, content, string(data))

	ids, err := s.ListUploadFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.UploadID{id}, ids)

	require.NoError(t, s.DeleteUpload(ctx, id))
	exists, err = s.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)

	err = s.DeleteUpload(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = s.OpenUpload(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_CreateUploadRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := core.UploadID("1700000000000_alice_alpha.txt")

	_, _, err := s.CreateUpload(ctx, id, strings.NewReader("first"))
	require.NoError(t, err)

	_, _, err = s.CreateUpload(ctx, id, strings.NewReader("second"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	blob, _, err := s.OpenUpload(ctx, id)
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestStore_CreateUploadRejectsSharedBase(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	csv := core.UploadID("1700000000000_alice_alpha.csv")
	pdf := core.UploadID("1700000000000_alice_alpha.pdf")

	_, _, err := s.CreateUpload(ctx, csv, strings.NewReader("a,b\n"))
	require.NoError(t, err)

	_, _, err = s.CreateUpload(ctx, pdf, strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	exists, err := s.UploadExists(ctx, pdf)
	require.NoError(t, err)
	assert.False(t, exists)

	ids, err := s.ListUploadFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.UploadID{csv}, ids)

	require.NoError(t, s.DeleteUpload(ctx, csv))
	_, _, err = s.CreateUpload(ctx, pdf, strings.NewReader("%PDF"))
	assert.NoError(t, err)
}

func TestStore_CreateUploadRejectsBaseOfUnclaimedUpload(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	legacy := core.UploadID("1700000000000_alice_alpha.xlsx")
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), UploadsDir, string(legacy)), []byte("x"), 0o644))

	_, _, err := s.CreateUpload(ctx, "1700000000000_alice_alpha.csv", strings.NewReader("a,b\n"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	require.NoError(t, s.DeleteUpload(ctx, legacy))
	_, _, err = s.CreateUpload(ctx, "1700000000000_alice_alpha.csv", strings.NewReader("a,b\n"))
	assert.NoError(t, err)
}

func TestStore_CreateUploadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t)
	id := core.UploadID("1700000000000_alice_alpha.txt")

	_, _, err := s.CreateUpload(ctx, id, strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	exists, err := s.UploadExists(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = s.CreateUpload(context.Background(), id, strings.NewReader("data"))
	assert.NoError(t, err, "a failed upload releases its name")
}

func TestStore_RejectsUnsafeIdentifiers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, err := s.CreateUpload(ctx, "../escape.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.ReadCanonicalText(ctx, "a/b")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = s.ReadMarkers(ctx, core.Namespace{User: "..", Project: "p"}, "x_markers.json")
	assert.ErrorIs(t, err, core.ErrValidation)

	err = s.WriteEmbeddings(ctx, core.Namespace{User: "u", Project: "p"}, "../x", nil)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStore_CanonicalText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := core.UploadID("1700000000000_alice_alpha.pdf")

	_, err := s.ReadCanonicalText(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.WriteCanonicalText(ctx, id, "hello"))
	got, err := s.ReadCanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = os.Stat(filepath.Join(s.Root(), OutputsDir, string(id)+".md"))
	assert.NoError(t, err)

	require.NoError(t, s.DeleteCanonicalText(ctx, id))
	assert.ErrorIs(t, s.DeleteCanonicalText(ctx, id), storage.ErrNotFound)
}

func TestStore_Markers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := core.Namespace{User: "alice", Project: "alpha"}

	names, err := s.ListMarkers(ctx, ns)
	require.NoError(t, err)
	assert.Empty(t, names)

	markers := []core.Marker{{Field: "Field_1", Value: "a line that is long enough"}}
	require.NoError(t, s.WriteMarkers(ctx, ns, "b_markers.json", markers))
	require.NoError(t, s.WriteMarkers(ctx, ns, "a_markers.json", nil))

	got, err := s.ReadMarkers(ctx, ns, "b_markers.json")
	require.NoError(t, err)
	assert.Equal(t, markers, got)

	empty, err := s.ReadMarkers(ctx, ns, "a_markers.json")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	raw, err := os.ReadFile(filepath.Join(s.Root(), MarkersDir, "alice", "alpha", "b_markers.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  {")

	names, err = s.ListMarkers(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_markers.json", "b_markers.json"}, names)

	other, err := s.ListMarkers(ctx, core.Namespace{User: "alice", Project: "beta"})
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.DeleteMarkers(ctx, ns, "a_markers.json"))
	_, err = s.ReadMarkers(ctx, ns, "a_markers.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_Embeddings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := core.Namespace{User: "bob", Project: "beta"}
	records := []core.EmbeddingRecord{{Field: "Field_1", Text: "hello world", Embedding: []float32{0.5, -0.5}}}

	require.NoError(t, s.WriteEmbeddings(ctx, ns, "x_embedding.json", records))
	got, err := s.ReadEmbeddings(ctx, ns, "x_embedding.json")
	require.NoError(t, err)
	assert.Equal(t, records, got)

	names, err := s.ListEmbeddings(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, []string{"x_embedding.json"}, names)

	require.NoError(t, s.DeleteEmbeddings(ctx, ns, "x_embedding.json"))
	assert.ErrorIs(t, s.DeleteEmbeddings(ctx, ns, "x_embedding.json"), storage.ErrNotFound)
}

func TestStore_CorruptArtifact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ns := core.Namespace{User: "alice", Project: "alpha"}
	dir := filepath.Join(s.Root(), MarkersDir, "alice", "alpha")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad_markers.json"), []byte("{not json"), 0o644))

	_, err := s.ReadMarkers(ctx, ns, "bad_markers.json")
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.md")

	require.NoError(t, writeFileAtomic(path, []byte("one")))
	require.NoError(t, writeFileAtomic(path, []byte("two")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
