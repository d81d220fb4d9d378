package pipeline

import (
	"context"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_SingleUpload(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	other := f.upload(t, "other.csv", "h\nthis other upload must stay untouched\n")
	entry := f.upload(t, "data.csv", "h\nthe only row in this spreadsheet export\n")

	marker, embedding, err := f.pipeline.Process(ctx, testNS, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, marker.Fields)
	require.NotNil(t, embedding)
	assert.Equal(t, 1, embedding.Embedded)
	assert.Equal(t, "1700000000001_alice_alpha_embedding.json", embedding.EmbeddingID)

	markerIDs, err := f.store.ListMarkers(ctx, testNS)
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000001_alice_alpha_markers.json"}, markerIDs)
	_, err = f.store.ReadCanonicalText(ctx, other.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestProcess_UnsupportedUpload(t *testing.T) {
	f := setup(t)
	entry := f.upload(t, "notes.txt", "hello")

	marker, embedding, err := f.pipeline.Process(context.Background(), testNS, entry.ID)
	require.NoError(t, err)
	assert.True(t, marker.Skipped)
	assert.Nil(t, embedding)
}

func TestProcess_ForeignUpload(t *testing.T) {
	f := setup(t)
	f.upload(t, "data.csv", "a\n1\n")

	_, _, err := f.pipeline.Process(context.Background(), testNS, "1700000000000_bob_beta.csv")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
