package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, backend, err := NewMemoryRegistry()
	require.NoError(t, err)
	t.Cleanup(func() {
		registry.Close()
		backend.Close()
	})
	return registry
}

func TestRegistry_EnsureNamespace(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	ns := core.Namespace{User: "alice", Project: "alpha"}

	exists, err := r.NamespaceExists(ctx, ns)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.EnsureNamespace(ctx, ns))
	require.NoError(t, r.EnsureNamespace(ctx, ns), "must be idempotent")

	exists, err = r.NamespaceExists(ctx, ns)
	require.NoError(t, err)
	assert.True(t, exists)

	userExists, err := r.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, userExists)
}

func TestRegistry_EnsureNamespace_Validation(t *testing.T) {
	r := newTestRegistry(t)
	err := r.EnsureNamespace(context.Background(), core.Namespace{User: "alice", Project: "../etc"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRegistry_EnsureUserKeepsCreationTime(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return first }

	info, err := r.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first.Equal(info.CreatedAt))

	r.now = func() time.Time { return first.Add(time.Hour) }
	info, err = r.EnsureUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first.Equal(info.CreatedAt))
}

func TestRegistry_ConcurrentEnsureNamespaceLosesNothing(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	projects := []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7"}
	var wg sync.WaitGroup
	for _, p := range projects {
		wg.Add(1)
		go func(project string) {
			defer wg.Done()
			assert.NoError(t, r.EnsureNamespace(ctx, core.Namespace{User: "alice", Project: project}))
		}(p)
	}
	wg.Wait()

	got, err := r.ListProjects(ctx, "alice")
	require.NoError(t, err)
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	assert.Equal(t, projects, names)
}

func TestRegistry_ListProjects(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	_, err := r.ListProjects(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	for _, p := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.EnsureNamespace(ctx, core.Namespace{User: "alice", Project: p}))
	}
	require.NoError(t, r.EnsureNamespace(ctx, core.Namespace{User: "alicia", Project: "other"}))

	got, err := r.ListProjects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
	assert.Equal(t, "zeta", got[2].Name)

	_, err = r.EnsureUser(ctx, "bob")
	require.NoError(t, err)
	empty, err := r.ListProjects(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, empty)

	users, err := r.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alice", users[0].Name)
	assert.Equal(t, "alicia", users[1].Name)
	assert.Equal(t, "bob", users[2].Name)
}

func TestRegistry_UploadIndex(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	ns := core.Namespace{User: "alice", Project: "alpha"}
	other := core.Namespace{User: "alice", Project: "beta"}

	entry := &core.UploadEntry{
		ID:           "1700000000002_alice_alpha.csv",
		OriginalName: "b.csv",
		Size:         8,
		CreatedAt:    time.UnixMilli(1700000000002).UTC(),
	}
	require.NoError(t, r.IndexUpload(ctx, ns, entry))
	require.NoError(t, r.IndexUpload(ctx, ns, &core.UploadEntry{ID: "1700000000001_alice_alpha.pdf"}))

	exists, err := r.NamespaceExists(ctx, ns)
	require.NoError(t, err)
	assert.True(t, exists, "indexing creates the namespace")

	err = r.IndexUpload(ctx, ns, entry)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := r.GetUpload(ctx, ns, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = r.GetUpload(ctx, other, entry.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	list, err := r.ListUploads(ctx, ns)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, core.UploadID("1700000000001_alice_alpha.pdf"), list[0].ID)
	assert.Equal(t, entry.ID, list[1].ID)

	empty, err := r.ListUploads(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, r.UnindexUpload(ctx, ns, entry.ID))
	err = r.UnindexUpload(ctx, ns, entry.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err = r.ListUploads(ctx, ns)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRegistry_UploadOwner(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	owner := core.Namespace{User: "a", Project: "b_c"}
	other := core.Namespace{User: "a_b", Project: "c"}
	id := core.UploadID("1700000000000_a_b_c.csv")

	_, err := r.UploadOwner(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, r.IndexUpload(ctx, owner, &core.UploadEntry{ID: id}))
	got, err := r.UploadOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	err = r.IndexUpload(ctx, other, &core.UploadEntry{ID: id})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	_, err = r.GetUpload(ctx, other, id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, r.UnindexUpload(ctx, owner, id))
	_, err = r.UploadOwner(ctx, id)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, r.IndexUpload(ctx, other, &core.UploadEntry{ID: id}))
	got, err = r.UploadOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestRegistry_BackfillsUploadOwners(t *testing.T) {
	ctx := context.Background()
	registry, backend, err := NewMemoryRegistry()
	require.NoError(t, err)
	defer backend.Close()
	ns := core.Namespace{User: "alice", Project: "alpha"}
	id := core.UploadID("1700000000000_alice_alpha.csv")

	require.NoError(t, backend.Update(ctx, func(tx *badger.Txn) error {
		return tx.Set(makeUploadKey(ns, id), storage.MarshalUploadEntry(&core.UploadEntry{ID: id}))
	}))
	_, err = registry.UploadOwner(ctx, id)
	require.ErrorIs(t, err, core.ErrNotFound)

	reopened, err := NewRegistry(backend)
	require.NoError(t, err)
	got, err := reopened.UploadOwner(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ns, got)
}

func TestRegistry_IndexUpload_Validation(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	ns := core.Namespace{User: "alice", Project: "alpha"}

	assert.ErrorIs(t, r.IndexUpload(ctx, ns, nil), core.ErrValidation)
	assert.ErrorIs(t, r.IndexUpload(ctx, ns, &core.UploadEntry{ID: "../x"}), core.ErrValidation)
}
