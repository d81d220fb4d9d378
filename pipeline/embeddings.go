package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
)

// markerBatch is one marker artifact queued for embedding.
type markerBatch struct {
	item  EmbeddingItem
	texts []string
	// fields holds the marker field name of each text.
	fields []string
}

// DeriveEmbeddings writes an embedding artifact for every marker artifact in
// ns. Marker values are trimmed; values shorter than MinEmbedLength runes are
// skipped. The records of one artifact are embedded concurrently and written
// in marker order.
func (p *Pipeline) DeriveEmbeddings(ctx context.Context, ns core.Namespace) (*EmbeddingSummary, error) {
	if err := p.requireNamespace(ctx, ns); err != nil {
		return nil, err
	}
	markerIDs, err := p.store.ListMarkers(ctx, ns)
	if err != nil {
		return nil, err
	}
	if len(markerIDs) == 0 {
		return nil, fmt.Errorf("marker artifacts in %s: %w", ns, core.ErrNotFound)
	}

	summary := &EmbeddingSummary{RunID: uuid.New(), Namespace: ns}
	logger := p.logger.With("run", summary.RunID.String(), "namespace", ns.String())

	var errs []error
	batches := make([]*markerBatch, 0, len(markerIDs))
	total := 0
	for _, markerID := range markerIDs {
		batch, err := p.loadBatch(ctx, ns, markerID)
		if err != nil {
			logger.Warn("cannot read marker artifact", "marker", markerID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", markerID, err))
			batch.item.Err = err
		}
		total += len(batch.texts)
		batches = append(batches, batch)
	}
	logger.Info("deriving embeddings", "artifacts", len(batches), "texts", total)

	progress := NewProgressTracker(p.progress, "texts", total)
	for _, batch := range batches {
		if batch.item.Err == nil {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}
			if err := p.embedBatch(ctx, ns, batch, progress); err != nil {
				logger.Warn("embedding derivation failed", "marker", batch.item.MarkerID, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", batch.item.MarkerID, err))
				batch.item.Err = err
			} else {
				logger.Debug("embeddings written", "embedding", batch.item.EmbeddingID,
					"embedded", batch.item.Embedded, "skipped", batch.item.Skipped)
			}
		}
		summary.Items = append(summary.Items, batch.item)
	}
	progress.Finish()

	logger.Info("embedding derivation finished", "embedded", summary.Embedded(), "errors", len(errs))
	return summary, errors.Join(errs...)
}

func (p *Pipeline) loadBatch(ctx context.Context, ns core.Namespace, markerID string) (*markerBatch, error) {
	batch := &markerBatch{item: EmbeddingItem{MarkerID: markerID, Strategies: map[string]int{}}}
	embeddingID, err := core.EmbeddingIDFor(markerID)
	if err != nil {
		return batch, err
	}
	batch.item.EmbeddingID = embeddingID

	fields, err := p.store.ReadMarkers(ctx, ns, markerID)
	if err != nil {
		return batch, err
	}
	for _, m := range fields {
		text := strings.TrimSpace(m.Value)
		if utf8.RuneCountInString(text) < MinEmbedLength {
			batch.item.Skipped++
			p.metrics.EmbedSkipped()
			continue
		}
		batch.texts = append(batch.texts, text)
		batch.fields = append(batch.fields, m.Field)
	}
	return batch, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, ns core.Namespace, batch *markerBatch, progress *ProgressTracker) error {
	records := make([]core.EmbeddingRecord, len(batch.texts))
	strategies := make([]string, len(batch.texts))

	var wg sync.WaitGroup
	for i, text := range batch.texts {
		embed := func() {
			defer wg.Done()
			vec := p.provider.Embed(ctx, text)
			records[i] = core.EmbeddingRecord{Field: batch.fields[i], Text: text, Embedding: vec.Values}
			strategies[i] = vec.Strategy
			progress.Increment(1)
		}
		wg.Add(1)
		if err := p.embedPool.Submit(embed); err != nil {
			// Pool closed or overloaded: embed on the caller's goroutine.
			embed()
		}
	}
	wg.Wait()

	if err := p.store.WriteEmbeddings(ctx, ns, batch.item.EmbeddingID, records); err != nil {
		return err
	}
	for _, s := range strategies {
		batch.item.Strategies[s]++
		p.metrics.Embedded(s)
	}
	batch.item.Embedded = len(records)
	return nil
}
