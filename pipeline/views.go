package pipeline

import (
	"context"
	"fmt"

	"github.com/poiesic/docpipe/cascade"
	"github.com/poiesic/docpipe/core"
)

// Delete removes an artifact and everything derived from it.
func (p *Pipeline) Delete(ctx context.Context, kind core.ArtifactKind, ns core.Namespace, id string) (*cascade.Report, error) {
	return p.engine.Delete(ctx, kind, ns, id)
}

// List returns the artifacts of every stage in ns.
func (p *Pipeline) List(ctx context.Context, ns core.Namespace) (*Listing, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	uploads, err := p.uploadsIn(ctx, ns)
	if err != nil {
		return nil, err
	}
	markerIDs, err := p.store.ListMarkers(ctx, ns)
	if err != nil {
		return nil, err
	}
	embeddingIDs, err := p.store.ListEmbeddings(ctx, ns)
	if err != nil {
		return nil, err
	}
	return &Listing{Uploads: uploads, Markers: markerIDs, Embeddings: embeddingIDs}, nil
}

// ListKind returns the artifact names of one stage in ns.
func (p *Pipeline) ListKind(ctx context.Context, ns core.Namespace, kind core.ArtifactKind) ([]string, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	switch kind {
	case core.KindUpload:
		uploads, err := p.uploadsIn(ctx, ns)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(uploads))
		for i, id := range uploads {
			names[i] = string(id)
		}
		return names, nil
	case core.KindMarker:
		return p.store.ListMarkers(ctx, ns)
	case core.KindEmbedding:
		return p.store.ListEmbeddings(ctx, ns)
	}
	return nil, fmt.Errorf("%w: %w %q", core.ErrValidation, core.ErrUnknownKind, kind)
}

// ViewUpload returns the canonical text of an upload owned by ns.
func (p *Pipeline) ViewUpload(ctx context.Context, ns core.Namespace, id core.UploadID) (string, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return "", err
	}
	if err := core.ValidateSegment(string(id)); err != nil {
		return "", err
	}
	owned, err := p.owns(ctx, ns, id)
	if err != nil {
		return "", err
	}
	if !owned {
		return "", fmt.Errorf("upload %s in %s: %w", id, ns, core.ErrNotFound)
	}
	return p.cache.CanonicalText(ctx, id)
}

// ViewMarkers returns a marker artifact.
func (p *Pipeline) ViewMarkers(ctx context.Context, ns core.Namespace, markerID string) ([]core.Marker, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	return p.store.ReadMarkers(ctx, ns, markerID)
}

// ViewEmbeddings returns an embedding artifact.
func (p *Pipeline) ViewEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) ([]core.EmbeddingRecord, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	return p.store.ReadEmbeddings(ctx, ns, embeddingID)
}
