package pipeline

import (
	"context"
	"fmt"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
)

// Process derives the marker artifact of one upload and then its embedding
// artifact. Uploads of an unsupported type return a skipped marker item and
// no embedding item.
func (p *Pipeline) Process(ctx context.Context, ns core.Namespace, id core.UploadID) (*MarkerItem, *EmbeddingItem, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, nil, err
	}
	if err := core.ValidateSegment(string(id)); err != nil {
		return nil, nil, err
	}
	owned, err := p.owns(ctx, ns, id)
	if err != nil {
		return nil, nil, err
	}
	if !owned {
		return nil, nil, fmt.Errorf("upload %s in %s: %w", id, ns, core.ErrNotFound)
	}

	marker := &MarkerItem{Upload: id}
	if !extract.IsSupported(id.Extension()) {
		marker.Skipped = true
		p.metrics.MarkerItem("skipped")
		return marker, nil, nil
	}
	marker.MarkerID, marker.Fields, marker.Err = p.deriveMarker(ctx, ns, id)
	if marker.Err != nil {
		p.metrics.MarkerItem("error")
		return marker, nil, marker.Err
	}
	p.metrics.MarkerItem("ok")

	batch, err := p.loadBatch(ctx, ns, marker.MarkerID)
	if err == nil {
		err = p.embedBatch(ctx, ns, batch, nil)
	}
	if err != nil {
		batch.item.Err = err
		return marker, &batch.item, err
	}
	p.logger.Info("upload processed", "namespace", ns.String(), "upload", id,
		"fields", marker.Fields, "embedded", batch.item.Embedded)
	return marker, &batch.item, nil
}
