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

// Package pipeline implements the document operations: upload, marker
// derivation, embedding derivation, deletion, listing and viewing.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/cascade"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/extract"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/storage"
)

// MinEmbedLength is the shortest trimmed marker value, in runes, that is embedded.
const MinEmbedLength = 5

// Pipeline runs document operations against a registry and an artifact store.
type Pipeline struct {
	registry   storage.Registry
	store      storage.ArtifactStore
	provider   ai.EmbeddingProvider
	cache      *extract.Cache
	engine     *cascade.Engine
	embedPool  *ants.Pool
	extractors map[string]extract.Extractor
	metrics    *metrics.Metrics
	progress   io.Writer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used to embed the records of one
// marker artifact concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.embedPool != nil {
			p.embedPool.Release()
		}
		p.embedPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics records pipeline counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// WithExtractor registers an extractor for a file extension tag.
func WithExtractor(tag string, ext extract.Extractor) Option {
	return func(p *Pipeline) error {
		p.extractors[tag] = ext
		return nil
	}
}

// WithProgress writes embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithClock overrides the time source used for upload IDs.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// NewPipeline creates a pipeline. The caller keeps ownership of registry,
// store and provider; Release only frees the pipeline's own workers.
func NewPipeline(
	registry storage.Registry,
	store storage.ArtifactStore,
	provider ai.EmbeddingProvider,
	opts ...Option,
) (*Pipeline, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		registry:   registry,
		store:      store,
		provider:   provider,
		embedPool:  pool,
		extractors: map[string]extract.Extractor{},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	cacheOpts := []extract.Option{
		extract.WithLogger(p.logger),
		extract.WithMetrics(p.metrics),
	}
	for tag, ext := range p.extractors {
		cacheOpts = append(cacheOpts, extract.WithExtractor(tag, ext))
	}
	p.cache = extract.NewCache(store, cacheOpts...)
	p.engine = cascade.NewEngine(registry, store,
		cascade.WithLogger(p.logger),
		cascade.WithMetrics(p.metrics))
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Release frees the worker pool. The pipeline must not be used afterwards.
func (p *Pipeline) Release() {
	if p.embedPool != nil {
		p.embedPool.Release()
	}
}

// Cache returns the extraction cache used by the pipeline.
func (p *Pipeline) Cache() *extract.Cache {
	return p.cache
}

// requireNamespace validates ns and checks that it is registered.
func (p *Pipeline) requireNamespace(ctx context.Context, ns core.Namespace) error {
	if err := core.ValidateNamespace(ns); err != nil {
		return err
	}
	exists, err := p.registry.NamespaceExists(ctx, ns)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("namespace %s: %w", ns, core.ErrNotFound)
	}
	return nil
}
