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

// Package extract maps raw uploads to their canonical text and caches the
// result beside the upload.
//
// The extractor is chosen by file extension only. A file type without an
// extractor yields UnsupportedText, which is cached like any other result.
// Extraction failures are not cached, so the next call retries.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/metrics"
	"github.com/poiesic/docpipe/storage"
	"golang.org/x/sync/singleflight"
)

// UnsupportedText is the canonical text of a file type without an extractor.
const UnsupportedText = "Unsupported file type for preview."

// Cache produces and memoizes canonical text for uploads.
type Cache struct {
	store      storage.ArtifactStore
	extractors map[string]Extractor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	group      singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithExtractor registers ext for the given extension tag, replacing any
// built-in extractor. The tag includes the leading dot.
func WithExtractor(tag string, ext Extractor) Option {
	return func(c *Cache) {
		c.extractors[tag] = ext
	}
}

// WithMetrics records cache lookups and extractor runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a cache backed by store.
func NewCache(store storage.ArtifactStore, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		extractors: defaultExtractors(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "extraction-cache")
	return c
}

// CanonicalText returns the canonical text of the upload, extracting and
// caching it on first use. Concurrent calls for the same upload share one
// extraction. A cached text whose upload is gone is not served.
func (c *Cache) CanonicalText(ctx context.Context, id core.UploadID) (string, error) {
	exists, err := c.store.UploadExists(ctx, id)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("upload %s: %w", id, core.ErrNotFound)
	}

	text, err := c.store.ReadCanonicalText(ctx, id)
	if err == nil {
		c.metrics.CacheHit()
		return text, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	v, err, _ := c.group.Do(string(id), func() (any, error) {
		return c.extractAndStore(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) extractAndStore(ctx context.Context, id core.UploadID) (string, error) {
	// Another caller may have finished between the cache check and now.
	if text, err := c.store.ReadCanonicalText(ctx, id); err == nil {
		c.metrics.CacheHit()
		return text, nil
	}

	blob, size, err := c.store.OpenUpload(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("upload %s: %w", id, core.ErrNotFound)
		}
		return "", err
	}
	defer blob.Close()

	c.metrics.CacheMiss()
	tag := id.Extension()
	text := UnsupportedText
	if ext, ok := c.extractors[tag]; ok {
		text, err = ext.Extract(ctx, blob, size)
		c.metrics.Extraction(tag, err)
		if err != nil {
			c.logger.Warn("extraction failed", "upload", id, "tag", tag, "error", err)
			return "", fmt.Errorf("%w: %s: %w", core.ErrExtraction, id, err)
		}
	}

	if err := c.store.WriteCanonicalText(ctx, id, text); err != nil {
		return "", fmt.Errorf("caching canonical text for %s: %w", id, err)
	}
	c.logger.Debug("canonical text cached", "upload", id, "tag", tag, "length", len(text))
	return text, nil
}

// Invalidate drops the cached canonical text. A missing entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, id core.UploadID) error {
	err := c.store.DeleteCanonicalText(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
