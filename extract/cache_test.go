package extract

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	calls atomic.Int32
	text  string
	err   error
}

func (c *countingExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (string, error) {
	c.calls.Add(1)
	return c.text, c.err
}

func setupCache(t *testing.T, opts ...Option) (*Cache, *files.Store) {
	t.Helper()
	store, err := files.New(t.TempDir())
	require.NoError(t, err)
	return NewCache(store, opts...), store
}

func putUpload(t *testing.T, store *files.Store, id core.UploadID, content string) {
	t.Helper()
	_, _, err := store.CreateUpload(context.Background(), id, strings.NewReader(content))
	require.NoError(t, err)
}

func TestCache_ExtractsOnce(t *testing.T) {
	ctx := context.Background()
	counter := &countingExtractor{text: "| a | b |"}
	cache, store := setupCache(t, WithExtractor(".csv", counter))
	id := core.UploadID("1700000000000_alice_alpha.csv")
	putUpload(t, store, id, "a,b\n")

	first, err := cache.CanonicalText(ctx, id)
	require.NoError(t, err)
	second, err := cache.CanonicalText(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counter.calls.Load())

	cached, err := store.ReadCanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first, cached)
}

func TestCache_ConcurrentCallersShareExtraction(t *testing.T) {
	ctx := context.Background()
	counter := &countingExtractor{text: "shared"}
	cache, store := setupCache(t, WithExtractor(".pdf", counter))
	id := core.UploadID("1700000000000_alice_alpha.pdf")
	putUpload(t, store, id, "%PDF")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := cache.CanonicalText(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, "shared", text)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), counter.calls.Load())
}

func TestCache_CSVEndToEnd(t *testing.T) {
	cache, store := setupCache(t)
	id := core.UploadID("1700000000000_alice_alpha.csv")
	putUpload(t, store, id, "a,b\n1,2\n")

	text, err := cache.CanonicalText(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "| a | b |\n| --- | --- |\n| 1 | 2 |", text)
}

func TestCache_UnsupportedIsCached(t *testing.T) {
	ctx := context.Background()
	cache, store := setupCache(t)
	id := core.UploadID("1700000000000_alice_alpha.docx")
	putUpload(t, store, id, "whatever")

	text, err := cache.CanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, UnsupportedText, text)

	cached, err := store.ReadCanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, UnsupportedText, cached)
}

func TestCache_FailureIsNotCached(t *testing.T) {
	ctx := context.Background()
	counter := &countingExtractor{err: errors.New("corrupt xref table")}
	cache, store := setupCache(t, WithExtractor(".pdf", counter))
	id := core.UploadID("1700000000000_alice_alpha.pdf")
	putUpload(t, store, id, "%PDF")

	_, err := cache.CanonicalText(ctx, id)
	assert.ErrorIs(t, err, core.ErrExtraction)

	_, err = cache.CanonicalText(ctx, id)
	assert.ErrorIs(t, err, core.ErrExtraction)
	assert.Equal(t, int32(2), counter.calls.Load())

	_, err = store.ReadCanonicalText(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCache_MissingUpload(t *testing.T) {
	cache, _ := setupCache(t)

	_, err := cache.CanonicalText(context.Background(), "1700000000000_alice_alpha.csv")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	counter := &countingExtractor{text: "v1"}
	cache, store := setupCache(t, WithExtractor(".csv", counter))
	id := core.UploadID("1700000000000_alice_alpha.csv")
	putUpload(t, store, id, "a\n1\n")

	_, err := cache.CanonicalText(ctx, id)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, id))
	require.NoError(t, cache.Invalidate(ctx, id))

	_, err = cache.CanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestCache_OrphanedTextNotServed(t *testing.T) {
	ctx := context.Background()
	counter := &countingExtractor{text: "fresh"}
	cache, store := setupCache(t, WithExtractor(".csv", counter))
	id := core.UploadID("1700000000000_alice_alpha.csv")
	require.NoError(t, store.WriteCanonicalText(ctx, id, "stale"))

	_, err := cache.CanonicalText(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, int32(0), counter.calls.Load())
}

func TestCache_PDFEndToEnd(t *testing.T) {
	ctx := context.Background()
	cache, store := setupCache(t)
	content, err := os.ReadFile(filepath.Join("testdata", "report.pdf"))
	require.NoError(t, err)
	id := core.UploadID("1700000000000_alice_alpha.pdf")
	putUpload(t, store, id, string(content))

	text, err := cache.CanonicalText(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, reportPDFText, text)
	assert.Len(t, strings.Split(text, "\n"), 5)
}
