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

// Package docpipe wires the registry, artifact store, embedding provider
// and pipeline operations into a single Workspace rooted at one directory.
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/chain"
	"github.com/poiesic/docpipe/cascade"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/search"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/poiesic/docpipe/storage/files"
)

// RegistryDir is the BadgerDB directory under the workspace root.
const RegistryDir = "registry"

type Workspace struct {
	root     string
	backend  *badger.Backend
	registry *badger.Registry
	store    *files.Store
	provider ai.EmbeddingProvider
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// Option configures a Workspace.
type Option func(*workspaceOptions)

type workspaceOptions struct {
	aiConfig     *ai.Config
	provider     ai.EmbeddingProvider
	pipelineOpts []pipeline.Option
	logger       *slog.Logger
}

// WithAIConfig sets the embedding chain configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *workspaceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses provider instead of building a chain from the AI config.
// The workspace takes ownership and closes it.
func WithProvider(provider ai.EmbeddingProvider) Option {
	return func(o *workspaceOptions) {
		o.provider = provider
	}
}

// WithPipelineOptions passes options through to the pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(o *workspaceOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *workspaceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open opens or creates the workspace under root.
func Open(root string, opts ...Option) (*Workspace, error) {
	options := &workspaceOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if root == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		p, err := chain.FromConfig(options.aiConfig, chain.WithLogger(options.logger))
		if err != nil {
			return nil, err
		}
		provider = p
	}

	backend, err := badger.OpenBackend(filepath.Join(root, RegistryDir), false)
	if err != nil {
		provider.Close()
		return nil, err
	}

	registry, err := badger.NewRegistry(backend)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	store, err := files.New(root)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	pipelineOpts := append([]pipeline.Option{pipeline.WithLogger(options.logger)}, options.pipelineOpts...)
	pl, err := pipeline.NewPipeline(registry, store, provider, pipelineOpts...)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Workspace{
		root:     root,
		backend:  backend,
		registry: registry,
		store:    store,
		provider: provider,
		pipeline: pl,
		logger:   options.logger,
	}, nil
}

func (w *Workspace) Close() error {
	w.pipeline.Release()

	if err := w.provider.Close(); err != nil {
		w.logger.Error("error closing embedding provider", "err", err)
	}
	if err := w.registry.Close(); err != nil {
		w.logger.Error("error closing registry", "err", err)
		return err
	}
	if err := w.backend.Close(); err != nil {
		w.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) Registry() storage.Registry {
	return w.registry
}

func (w *Workspace) Store() storage.ArtifactStore {
	return w.store
}

func (w *Workspace) Provider() ai.EmbeddingProvider {
	return w.provider
}

func (w *Workspace) Pipeline() *pipeline.Pipeline {
	return w.pipeline
}

// Warmup loads the first embedding strategy ahead of use and reports
// whether it is ready. Providers without a warmup step are always ready.
func (w *Workspace) Warmup(ctx context.Context) bool {
	if warmer, ok := w.provider.(ai.Warmer); ok {
		return warmer.Warmup(ctx)
	}
	return true
}

// ImportLegacy imports JSON registry and upload index files into the registry.
func (w *Workspace) ImportLegacy(ctx context.Context, dbPath, uploadsPath string) (*badger.ImportStats, error) {
	return w.registry.ImportLegacy(ctx, dbPath, uploadsPath)
}

func (w *Workspace) Upload(ctx context.Context, ns core.Namespace, originalName string, r io.Reader) (*core.UploadEntry, error) {
	return w.pipeline.Upload(ctx, ns, originalName, r)
}

func (w *Workspace) DeriveMarkers(ctx context.Context, ns core.Namespace) (*pipeline.MarkerSummary, error) {
	return w.pipeline.DeriveMarkers(ctx, ns)
}

func (w *Workspace) DeriveEmbeddings(ctx context.Context, ns core.Namespace) (*pipeline.EmbeddingSummary, error) {
	return w.pipeline.DeriveEmbeddings(ctx, ns)
}

// Process derives the marker and embedding artifacts of a single upload.
func (w *Workspace) Process(ctx context.Context, ns core.Namespace, id core.UploadID) (*pipeline.MarkerItem, *pipeline.EmbeddingItem, error) {
	return w.pipeline.Process(ctx, ns, id)
}

func (w *Workspace) Delete(ctx context.Context, kind core.ArtifactKind, ns core.Namespace, id string) (*cascade.Report, error) {
	return w.pipeline.Delete(ctx, kind, ns, id)
}

func (w *Workspace) List(ctx context.Context, ns core.Namespace) (*pipeline.Listing, error) {
	return w.pipeline.List(ctx, ns)
}

func (w *Workspace) ListKind(ctx context.Context, ns core.Namespace, kind core.ArtifactKind) ([]string, error) {
	return w.pipeline.ListKind(ctx, ns, kind)
}

func (w *Workspace) ViewUpload(ctx context.Context, ns core.Namespace, id core.UploadID) (string, error) {
	return w.pipeline.ViewUpload(ctx, ns, id)
}

func (w *Workspace) ViewMarkers(ctx context.Context, ns core.Namespace, markerID string) ([]core.Marker, error) {
	return w.pipeline.ViewMarkers(ctx, ns, markerID)
}

func (w *Workspace) ViewEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) ([]core.EmbeddingRecord, error) {
	return w.pipeline.ViewEmbeddings(ctx, ns, embeddingID)
}

// Search ranks the embedding records of ns against query.
// Returns core.ErrNotFound if the namespace doesn't exist.
func (w *Workspace) Search(ctx context.Context, ns core.Namespace, query string, maxHits int, opts ...search.Option) ([]*search.Hit, error) {
	return w.SearchWithMonitor(ctx, ns, query, maxHits, nil, opts...)
}

// SearchWithMonitor is Search with callbacks at each search stage.
func (w *Workspace) SearchWithMonitor(ctx context.Context, ns core.Namespace, query string, maxHits int, monitor search.Monitor, opts ...search.Option) ([]*search.Hit, error) {
	if err := core.ValidateNamespace(ns); err != nil {
		return nil, err
	}
	exists, err := w.registry.NamespaceExists(ctx, ns)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("namespace %s: %w", ns, core.ErrNotFound)
	}
	searcher, err := search.NewSearcher(w.store, w.provider, append([]search.Option{search.WithLogger(w.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return searcher.FindSimilarWithMonitor(ctx, ns, query, maxHits, monitor)
}
