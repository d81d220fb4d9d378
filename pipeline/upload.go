package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// maxIDAttempts bounds the millisecond steps taken to find a free upload ID.
const maxIDAttempts = 64

// Upload stores r as a new upload in ns, creating the namespace if needed.
// When the derived ID is taken, the creation time is advanced by one
// millisecond and the ID recomputed.
func (p *Pipeline) Upload(ctx context.Context, ns core.Namespace, originalName string, r io.Reader) (*core.UploadEntry, error) {
	if err := core.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	if err := p.registry.EnsureNamespace(ctx, ns); err != nil {
		return nil, err
	}

	at := p.now().UTC()
	var (
		id       core.UploadID
		size     int64
		checksum string
		err      error
	)
	for range maxIDAttempts {
		id, err = core.NewUploadID(ns, originalName, at)
		if err != nil {
			return nil, err
		}
		size, checksum, err = p.store.CreateUpload(ctx, id, r)
		if !errors.Is(err, storage.ErrDuplicateKey) {
			break
		}
		p.logger.Debug("upload id taken, advancing clock", "id", id)
		at = at.Add(time.Millisecond)
	}
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil, fmt.Errorf("%w after %d attempts", ErrIDExhausted, maxIDAttempts)
	}
	if err != nil {
		return nil, err
	}

	entry := &core.UploadEntry{
		ID:           id,
		OriginalName: filepath.Base(strings.TrimSpace(originalName)),
		ContentType:  mime.TypeByExtension(id.Extension()),
		Size:         size,
		Checksum:     checksum,
		CreatedAt:    time.UnixMilli(at.UnixMilli()).UTC(),
	}
	if err := p.registry.IndexUpload(ctx, ns, entry); err != nil {
		if rmErr := p.store.DeleteUpload(ctx, id); rmErr != nil {
			p.logger.Error("failed to remove unindexed upload", "id", id, "error", rmErr)
		}
		return nil, err
	}

	p.metrics.UploadStored()
	p.logger.Info("upload stored", "namespace", ns.String(), "id", id, "size", size)
	return entry, nil
}

// uploadsIn returns the namespace's uploads in lexical order: indexed
// entries plus stored files named for the namespace.
func (p *Pipeline) uploadsIn(ctx context.Context, ns core.Namespace) ([]core.UploadID, error) {
	entries, err := p.registry.ListUploads(ctx, ns)
	if err != nil {
		return nil, err
	}
	stored, err := p.store.ListUploadFiles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[core.UploadID]bool, len(entries))
	ids := make([]core.UploadID, 0, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
		ids = append(ids, e.ID)
	}
	for _, id := range stored {
		if seen[id] || !id.NamedFor(ns) {
			continue
		}
		claimed, err := p.indexedElsewhere(ctx, id)
		if err != nil {
			return nil, err
		}
		if !claimed {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// owns reports whether the upload belongs to ns. The name pattern only
// decides for uploads no namespace has indexed, since a tag like
// "a_b_c" fits both a/b_c and a_b/c.
func (p *Pipeline) owns(ctx context.Context, ns core.Namespace, id core.UploadID) (bool, error) {
	owner, err := p.registry.UploadOwner(ctx, id)
	if err == nil {
		return owner == ns, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	return id.NamedFor(ns), nil
}

// indexedElsewhere reports whether any namespace has indexed the upload.
func (p *Pipeline) indexedElsewhere(ctx context.Context, id core.UploadID) (bool, error) {
	_, err := p.registry.UploadOwner(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
