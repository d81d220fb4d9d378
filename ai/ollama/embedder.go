package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Name identifies vectors produced by the local strategy.
const Name = "local"

const (
	loadTimeout = 2 * time.Minute
	probeText   = "warmup"
)

// Strategy implements ai.Strategy using a local Ollama embedding model.
type Strategy struct {
	newClient func() (embeddings.Embedder, error)
	logger    *slog.Logger

	once    sync.Once
	client  embeddings.Embedder
	loadErr error
}

var (
	_ ai.Strategy = (*Strategy)(nil)
	_ ai.Warmer   = (*Strategy)(nil)
)

// New creates a local strategy. No connection is made until first use.
func New(config *ai.Config) (*Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DisableLocal {
		return nil, fmt.Errorf("%w: local strategy disabled", ai.ErrUpstreamUnavailable)
	}

	host, model := config.LocalHost, config.LocalModel
	return &Strategy{
		newClient: func() (embeddings.Embedder, error) {
			llm, err := ollama.New(
				ollama.WithServerURL(host),
				ollama.WithModel(model),
			)
			if err != nil {
				return nil, err
			}
			return embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
		},
		logger: slog.Default().With("component", "ollama-embedder", "model", model),
	}, nil
}

// Name returns "local".
func (s *Strategy) Name() string {
	return Name
}

// Warmup loads the model and reports whether it is usable.
func (s *Strategy) Warmup(ctx context.Context) bool {
	return s.load(ctx) == nil
}

// load creates and probes the client exactly once.
// The probe ignores the caller's cancellation and is bounded by loadTimeout.
func (s *Strategy) load(ctx context.Context) error {
	s.once.Do(func() {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		start := time.Now()
		client, err := s.newClient()
		if err == nil {
			_, err = client.EmbedQuery(loadCtx, probeText)
		}
		if err != nil {
			s.loadErr = err
			s.logger.Warn("local embedding model unavailable", "err", err)
			return
		}
		s.client = client
		s.logger.Info("local embedding model loaded", "elapsed", time.Since(start))
	})
	if s.loadErr != nil {
		return fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, s.loadErr)
	}
	return nil
}

// EmbedText returns the unit-normalized embedding of text.
func (s *Strategy) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	vec, err := s.client.EmbedQuery(ctx, text)
	if err != nil {
		s.logger.Debug("local embedding failed", "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return ai.NormalizeVector(vec), nil
}

// EmbedTexts returns unit-normalized embeddings in input order.
func (s *Strategy) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	vecs, err := s.client.EmbedDocuments(ctx, texts)
	if err != nil {
		s.logger.Debug("local batch embedding failed", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(vecs), len(texts))
	}
	for i := range vecs {
		vecs[i] = ai.NormalizeVector(vecs[i])
	}
	return vecs, nil
}
