package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

const (
	// DefaultThreshold is the minimum cosine similarity of a hit.
	DefaultThreshold float32 = 0.60

	// VerbatimBoost is added to the score of records containing every
	// significant query word.
	VerbatimBoost float32 = 0.3
)

// Hit is one ranked embedding record.
type Hit struct {
	EmbeddingID string
	Field       string
	Text        string
	Similarity  float32
	Score       float32
}

// Source is the part of storage.ArtifactStore a Searcher reads.
type Source interface {
	ListEmbeddings(ctx context.Context, ns core.Namespace) ([]string, error)
	ReadEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) ([]core.EmbeddingRecord, error)
}

// Searcher ranks stored embedding records by similarity to a query.
type Searcher struct {
	source    Source
	provider  ai.EmbeddingProvider
	threshold float32
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithThreshold sets the minimum cosine similarity, in [-1, 1].
func WithThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("%w: threshold %v outside [-1, 1]", core.ErrValidation, threshold)
		}
		s.threshold = threshold
		return nil
	}
}

// NewSearcher creates a searcher over source. Queries are embedded with provider.
func NewSearcher(source Source, provider ai.EmbeddingProvider, opts ...Option) (*Searcher, error) {
	if source == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	s := &Searcher{
		source:    source,
		provider:  provider,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// FindSimilar returns up to maxHits records of ns, best first.
func (s *Searcher) FindSimilar(ctx context.Context, ns core.Namespace, query string, maxHits int) ([]*Hit, error) {
	return s.FindSimilarWithMonitor(ctx, ns, query, maxHits, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, ns core.Namespace, query string, maxHits int, monitor Monitor) ([]*Hit, error) {
	if monitor == nil {
		monitor = noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return nil, fmt.Errorf("%w: maxHits must be positive", core.ErrValidation)
	}
	if err := core.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	monitor.Start(query)
	vec := s.provider.Embed(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	monitor.AfterQueryEmbedding(vec.Strategy)
	queryVec := ai.NormalizeVector(vec.Values)
	queryWords := significantWords(query)

	ids, err := s.source.ListEmbeddings(ctx, ns)
	if err != nil {
		return nil, err
	}

	var hits []*Hit
	var scanned, mismatched int
	for _, id := range ids {
		records, err := s.source.ReadEmbeddings(ctx, ns, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn("cannot read embedding artifact", "embedding", id, "error", err)
			continue
		}
		for _, rec := range records {
			scanned++
			if len(rec.Embedding) != len(queryVec) {
				mismatched++
				continue
			}
			similarity := dotProduct(queryVec, ai.NormalizeVector(rec.Embedding))
			if similarity < s.threshold {
				continue
			}
			hit := &Hit{
				EmbeddingID: id,
				Field:       rec.Field,
				Text:        rec.Text,
				Similarity:  similarity,
				Score:       similarity,
			}
			verbatim := verbatimMatch(rec.Text, queryWords)
			if verbatim {
				hit.Score += VerbatimBoost
			}
			monitor.Hit(hit, verbatim)
			hits = append(hits, hit)
		}
	}
	monitor.AfterScan(len(ids), scanned, mismatched)
	if mismatched > 0 {
		s.logger.Debug("skipped records of another dimension",
			"namespace", ns.String(), "count", mismatched, "dimension", len(queryVec))
	}

	slices.SortStableFunc(hits, func(a, b *Hit) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	if hits == nil {
		hits = []*Hit{}
	}
	monitor.Finish(hits)
	return hits, nil
}

func dotProduct(a, b []float32) float32 {
	var sum float64
	for i := range min(len(a), len(b)) {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(math.Max(-1, math.Min(1, sum)))
}
