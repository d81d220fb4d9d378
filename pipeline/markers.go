package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/markers"
)

// DeriveMarkers writes a marker artifact for every supported upload in ns.
//
// Uploads are processed one at a time. A failing upload is recorded on its
// item and the run continues; the returned error joins every item error and
// is returned together with the full summary.
func (p *Pipeline) DeriveMarkers(ctx context.Context, ns core.Namespace) (*MarkerSummary, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	uploads, err := p.uploadsIn(ctx, ns)
	if err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("uploads in %s: %w", ns, core.ErrNotFound)
	}

	summary := &MarkerSummary{RunID: uuid.New(), Namespace: ns}
	logger := p.logger.With("run", summary.RunID.String(), "namespace", ns.String())
	logger.Info("deriving markers", "uploads", len(uploads))

	var errs []error
	for _, id := range uploads {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		item := MarkerItem{Upload: id}
		if !extract.IsSupported(id.Extension()) {
			item.Skipped = true
			summary.Items = append(summary.Items, item)
			p.metrics.MarkerItem("skipped")
			continue
		}

		item.MarkerID, item.Fields, item.Err = p.deriveMarker(ctx, ns, id)
		if item.Err != nil {
			logger.Warn("marker derivation failed", "upload", id, "error", item.Err)
			errs = append(errs, fmt.Errorf("%s: %w", id, item.Err))
			p.metrics.MarkerItem("error")
		} else {
			logger.Debug("markers written", "upload", id, "marker", item.MarkerID, "fields", item.Fields)
			p.metrics.MarkerItem("ok")
		}
		summary.Items = append(summary.Items, item)
	}

	logger.Info("marker derivation finished", "written", summary.Written(), "errors", len(errs))
	return summary, errors.Join(errs...)
}

func (p *Pipeline) deriveMarker(ctx context.Context, ns core.Namespace, id core.UploadID) (string, int, error) {
	markerID, err := core.MarkerIDFor(id)
	if err != nil {
		return "", 0, err
	}
	text, err := p.cache.CanonicalText(ctx, id)
	if err != nil {
		return markerID, 0, err
	}
	fields := markers.Derive(text)
	if err := p.store.WriteMarkers(ctx, ns, markerID, fields); err != nil {
		return markerID, 0, err
	}
	return markerID, len(fields), nil
}
