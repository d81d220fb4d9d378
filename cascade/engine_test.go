package cascade

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	badgerstore "github.com/poiesic/docpipe/storage/badger"
	"github.com/poiesic/docpipe/storage/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNS = core.Namespace{User: "alice", Project: "alpha"}

type fixture struct {
	registry *badgerstore.Registry
	store    *files.Store
	engine   *Engine
}

func setup(t *testing.T) *fixture {
	t.Helper()
	registry, backend, err := badgerstore.NewMemoryRegistry()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	store, err := files.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, registry.EnsureNamespace(context.Background(), testNS))

	return &fixture{registry: registry, store: store, engine: NewEngine(registry, store)}
}

// seed stores an upload with its full chain of derived artifacts.
func (f *fixture) seed(t *testing.T, id core.UploadID) (markerID, embeddingID string) {
	t.Helper()
	ctx := context.Background()

	size, sum, err := f.store.CreateUpload(ctx, id, strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, f.registry.IndexUpload(ctx, testNS, &core.UploadEntry{
		ID: id, OriginalName: "data.csv", Size: size, Checksum: sum, CreatedAt: time.Now(),
	}))
	require.NoError(t, f.store.WriteCanonicalText(ctx, id, "| a | b |"))

	markerID, err = core.MarkerIDFor(id)
	require.NoError(t, err)
	require.NoError(t, f.store.WriteMarkers(ctx, testNS, markerID, []core.Marker{{Field: "Field_1", Value: "a sufficiently long line"}}))

	embeddingID, err = core.EmbeddingIDFor(markerID)
	require.NoError(t, err)
	require.NoError(t, f.store.WriteEmbeddings(ctx, testNS, embeddingID, []core.EmbeddingRecord{{Field: "Field_1", Text: "a sufficiently long line", Embedding: []float32{1}}}))
	return markerID, embeddingID
}

func outcomes(r *Report) map[string]Outcome {
	m := make(map[string]Outcome, len(r.Steps))
	for _, s := range r.Steps {
		m[s.Artifact] = s.Outcome
	}
	return m
}

func TestDelete_UploadRemovesEverything(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	markerID, embeddingID := f.seed(t, id)

	report, err := f.engine.Delete(ctx, core.KindUpload, testNS, string(id))
	require.NoError(t, err)

	assert.Equal(t, map[string]Outcome{
		ArtifactUpload:        StepDeleted,
		ArtifactMarker:        StepDeleted,
		ArtifactEmbedding:     StepDeleted,
		ArtifactCanonicalText: StepDeleted,
		ArtifactIndexEntry:    StepDeleted,
	}, outcomes(report))

	exists, err := f.store.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = f.store.ReadCanonicalText(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.store.ReadMarkers(ctx, testNS, markerID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.store.ReadEmbeddings(ctx, testNS, embeddingID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = f.registry.GetUpload(ctx, testNS, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_UploadWithMissingDescendants(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_alice_alpha.pdf")
	_, _, err := f.store.CreateUpload(ctx, id, strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.NoError(t, f.registry.IndexUpload(ctx, testNS, &core.UploadEntry{ID: id}))

	report, err := f.engine.Delete(ctx, core.KindUpload, testNS, string(id))
	require.NoError(t, err)

	got := outcomes(report)
	assert.Equal(t, StepDeleted, got[ArtifactUpload])
	assert.Equal(t, StepSkipped, got[ArtifactMarker])
	assert.Equal(t, StepSkipped, got[ArtifactEmbedding])
	assert.Equal(t, StepSkipped, got[ArtifactCanonicalText])
	assert.Equal(t, StepDeleted, got[ArtifactIndexEntry])
	assert.Equal(t, []string{string(id), string(id)}, report.Deleted())
}

func TestDelete_LegacyUploadMatchedByName(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1600000000000_alice_alpha.csv")
	_, _, err := f.store.CreateUpload(ctx, id, strings.NewReader("x"))
	require.NoError(t, err)

	report, err := f.engine.Delete(ctx, core.KindUpload, testNS, string(id))
	require.NoError(t, err)
	assert.Equal(t, StepSkipped, outcomes(report)[ArtifactIndexEntry])
}

func TestDelete_UploadOwnedByOtherNamespace(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_bob_beta.csv")
	_, _, err := f.store.CreateUpload(ctx, id, strings.NewReader("x"))
	require.NoError(t, err)

	_, err = f.engine.Delete(ctx, core.KindUpload, testNS, string(id))
	assert.ErrorIs(t, err, core.ErrNotFound)

	exists, err := f.store.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDelete_UploadIndexedUnderSameTag(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	owner := core.Namespace{User: "alice", Project: "alpha_x"}
	intruder := core.Namespace{User: "alice_alpha", Project: "x"}
	require.NoError(t, f.registry.EnsureNamespace(ctx, intruder))
	id := core.UploadID("1700000000000_alice_alpha_x.csv")
	_, _, err := f.store.CreateUpload(ctx, id, strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, f.registry.IndexUpload(ctx, owner, &core.UploadEntry{ID: id}))

	_, err = f.engine.Delete(ctx, core.KindUpload, intruder, string(id))
	assert.ErrorIs(t, err, core.ErrNotFound)

	exists, err := f.store.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
	_, err = f.registry.GetUpload(ctx, owner, id)
	assert.NoError(t, err)

	report, err := f.engine.Delete(ctx, core.KindUpload, owner, string(id))
	require.NoError(t, err)
	assert.Equal(t, StepDeleted, outcomes(report)[ArtifactUpload])
	_, err = f.registry.UploadOwner(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_MarkerKeepsUpload(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	markerID, embeddingID := f.seed(t, id)

	report, err := f.engine.Delete(ctx, core.KindMarker, testNS, markerID)
	require.NoError(t, err)
	assert.Equal(t, []string{markerID, embeddingID}, report.Deleted())

	exists, err := f.store.UploadExists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)
	_, err = f.store.ReadCanonicalText(ctx, id)
	assert.NoError(t, err)
}

func TestDelete_EmbeddingOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	markerID, embeddingID := f.seed(t, id)

	report, err := f.engine.Delete(ctx, core.KindEmbedding, testNS, embeddingID)
	require.NoError(t, err)
	assert.Equal(t, []string{embeddingID}, report.Deleted())

	_, err = f.store.ReadMarkers(ctx, testNS, markerID)
	assert.NoError(t, err)
}

func TestDelete_MissingTarget(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, kind := range []core.ArtifactKind{core.KindUpload, core.KindMarker, core.KindEmbedding} {
		report, err := f.engine.Delete(ctx, kind, testNS, "1700000000000_alice_alpha_missing.json")
		assert.ErrorIs(t, err, core.ErrNotFound, kind)
		assert.Nil(t, report)
	}
}

func TestDelete_UnknownNamespace(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Delete(context.Background(), core.KindMarker, core.Namespace{User: "nobody", Project: "x"}, "a_markers.json")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDelete_RejectsUnsafeInput(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Delete(context.Background(), core.KindUpload, testNS, "../etc/passwd")
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.engine.Delete(context.Background(), core.ArtifactKind("thumbnail"), testNS, "x")
	assert.ErrorIs(t, err, core.ErrUnknownKind)
}

type failingStore struct {
	storage.ArtifactStore
}

func (failingStore) DeleteEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) error {
	return &fs.PathError{Op: "remove", Path: embeddingID, Err: fs.ErrPermission}
}

func TestDelete_FailedStepDoesNotStopCascade(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	f.seed(t, id)
	engine := NewEngine(f.registry, failingStore{f.store})

	report, err := engine.Delete(ctx, core.KindUpload, testNS, string(id))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.ErrorIs(t, err, fs.ErrPermission)
	require.NotNil(t, report)

	got := outcomes(report)
	assert.Equal(t, StepFailed, got[ArtifactEmbedding])
	assert.Equal(t, StepDeleted, got[ArtifactCanonicalText])
	assert.Equal(t, StepDeleted, got[ArtifactIndexEntry])
	require.Len(t, report.Failed(), 1)
	assert.True(t, errors.Is(report.Failed()[0].Err, fs.ErrPermission))
}
