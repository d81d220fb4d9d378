// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cascade deletes an artifact together with everything derived
// from it.
//
//	upload    -> upload bytes, marker, embedding, canonical text, index entry
//	marker    -> marker, embedding
//	embedding -> embedding
//
// The top target must exist. Descendants are removed best-effort: an
// already absent descendant is a skipped step, any other failure is a
// failed step and the remaining steps still run.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/storage"
)

// Engine performs cascade deletions.
type Engine struct {
	registry storage.Registry
	store    storage.ArtifactStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics counts cascade steps by outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over the given registry and artifact store.
func NewEngine(registry storage.Registry, store storage.ArtifactStore, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "cascade")
	return e
}

// Delete removes the artifact of the given kind and its descendants.
//
// It returns an error wrapping core.ErrNotFound, and no report, when the
// target does not exist in the namespace. When some descendant could not be
// removed the report is returned together with an error wrapping
// ErrIncomplete.
func (e *Engine) Delete(ctx context.Context, kind core.ArtifactKind, ns core.Namespace, id string) (*Report, error) {
	if err := core.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	if err := core.ValidateSegment(id); err != nil {
		return nil, err
	}

	exists, err := e.registry.NamespaceExists(ctx, ns)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("namespace %s: %w", ns, core.ErrNotFound)
	}

	report := &Report{Kind: kind, Namespace: ns, Target: id}
	switch kind {
	case core.KindUpload:
		err = e.deleteUpload(ctx, report, core.UploadID(id))
	case core.KindMarker:
		err = e.deleteMarker(ctx, report, id)
	case core.KindEmbedding:
		err = e.deleteEmbedding(ctx, report, id)
	default:
		return nil, fmt.Errorf("%w: %w %q", core.ErrValidation, core.ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("cascade deletion finished",
		"kind", kind, "namespace", ns.String(), "target", id,
		"deleted", len(report.Deleted()), "failed", len(report.Failed()))
	return report, report.Err()
}

func (e *Engine) deleteUpload(ctx context.Context, report *Report, id core.UploadID) error {
	ns := report.Namespace

	indexed := true
	owner, err := e.registry.UploadOwner(ctx, id)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}
		indexed = false
	}
	if indexed && owner != ns {
		return fmt.Errorf("upload %s in %s: %w", id, ns, core.ErrNotFound)
	}
	present, err := e.store.UploadExists(ctx, id)
	if err != nil {
		return err
	}
	// Uploads without an index entry predate the index and are matched by name.
	if !indexed && (!present || !id.NamedFor(ns)) {
		return fmt.Errorf("upload %s in %s: %w", id, ns, core.ErrNotFound)
	}

	e.step(report, ArtifactUpload, string(id), func() error {
		return e.store.DeleteUpload(ctx, id)
	})

	markerID, err := core.MarkerIDFor(id)
	if err != nil {
		e.fail(report, ArtifactMarker, string(id), err)
	} else {
		e.step(report, ArtifactMarker, markerID, func() error {
			return e.store.DeleteMarkers(ctx, ns, markerID)
		})
		e.deleteDerivedEmbedding(ctx, report, markerID)
	}

	textID, err := core.CanonicalTextIDFor(id)
	if err != nil {
		e.fail(report, ArtifactCanonicalText, string(id), err)
	} else {
		e.step(report, ArtifactCanonicalText, textID, func() error {
			return e.store.DeleteCanonicalText(ctx, id)
		})
	}

	e.step(report, ArtifactIndexEntry, string(id), func() error {
		return e.registry.UnindexUpload(ctx, ns, id)
	})
	return nil
}

func (e *Engine) deleteMarker(ctx context.Context, report *Report, markerID string) error {
	if err := e.store.DeleteMarkers(ctx, report.Namespace, markerID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("marker %s in %s: %w", markerID, report.Namespace, core.ErrNotFound)
		}
		return err
	}
	e.record(report, Step{Artifact: ArtifactMarker, ID: markerID, Outcome: StepDeleted})
	e.deleteDerivedEmbedding(ctx, report, markerID)
	return nil
}

func (e *Engine) deleteEmbedding(ctx context.Context, report *Report, embeddingID string) error {
	if err := e.store.DeleteEmbeddings(ctx, report.Namespace, embeddingID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("embedding %s in %s: %w", embeddingID, report.Namespace, core.ErrNotFound)
		}
		return err
	}
	e.record(report, Step{Artifact: ArtifactEmbedding, ID: embeddingID, Outcome: StepDeleted})
	return nil
}

func (e *Engine) deleteDerivedEmbedding(ctx context.Context, report *Report, markerID string) {
	embeddingID, err := core.EmbeddingIDFor(markerID)
	if err != nil {
		e.fail(report, ArtifactEmbedding, markerID, err)
		return
	}
	e.step(report, ArtifactEmbedding, embeddingID, func() error {
		return e.store.DeleteEmbeddings(ctx, report.Namespace, embeddingID)
	})
}

// step runs one best-effort removal. An absent artifact is skipped.
func (e *Engine) step(report *Report, artifact, id string, remove func() error) {
	err := remove()
	switch {
	case err == nil:
		e.record(report, Step{Artifact: artifact, ID: id, Outcome: StepDeleted})
	case errors.Is(err, core.ErrNotFound):
		e.record(report, Step{Artifact: artifact, ID: id, Outcome: StepSkipped})
	default:
		e.fail(report, artifact, id, err)
	}
}

func (e *Engine) fail(report *Report, artifact, id string, err error) {
	e.logger.Error("cascade step failed",
		"namespace", report.Namespace.String(), "artifact", artifact, "id", id, "error", err)
	e.record(report, Step{Artifact: artifact, ID: id, Outcome: StepFailed, Err: err})
}

func (e *Engine) record(report *Report, s Step) {
	e.metrics.CascadeStep(s.Artifact, string(s.Outcome))
	report.Steps = append(report.Steps, s)
}
