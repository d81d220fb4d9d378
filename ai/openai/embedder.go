package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/retry"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Name identifies vectors produced by the remote strategy.
const Name = "remote"

// Strategy implements ai.Strategy using an OpenAI-compatible embedding API.
type Strategy struct {
	embedder    embeddings.Embedder
	limiter     *rate.Limiter
	dim         int
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

var _ ai.Strategy = (*Strategy)(nil)

// New creates a remote strategy. It fails with ai.ErrNoAPIKey when the
// configuration carries no credential.
func New(config *ai.Config) (*Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.RemoteEnabled() {
		return nil, ai.ErrNoAPIKey
	}

	client, err := openai.New(
		openai.WithBaseURL(config.RemoteHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.RemoteModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if config.RemoteRPS > 0 {
		limit = rate.Limit(config.RemoteRPS)
	}

	return &Strategy{
		embedder:    embedder,
		limiter:     rate.NewLimiter(limit, 1),
		dim:         config.Dimension,
		maxAttempts: config.RemoteMaxAttempts,
		retryDelay:  config.RemoteRetryDelay,
		logger:      slog.Default().With("component", "openai-embedder", "model", config.RemoteModel),
	}, nil
}

// Name returns "remote".
func (s *Strategy) Name() string {
	return Name
}

// EmbedText generates a vector embedding for a single text string.
func (s *Strategy) EmbedText(ctx context.Context, text string) ([]float32, error) {
	s.logger.Debug("generating embedding for single text", "length", len(text))

	var vec []float32
	err := retry.WithBackoff(ctx, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}, s.maxAttempts, s.retryDelay)
	if err != nil {
		s.logger.Warn("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, err)
	}

	if len(vec) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return ai.ReduceDimension(vec, s.dim), nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (s *Strategy) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	s.logger.Debug("generating embeddings for texts", "count", len(texts))

	var vecs [][]float32
	err := retry.WithBackoff(ctx, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		vecs = v
		return nil
	}, s.maxAttempts, s.retryDelay)
	if err != nil {
		s.logger.Warn("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, err)
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(vecs), len(texts))
	}
	for i := range vecs {
		vecs[i] = ai.ReduceDimension(vecs[i], s.dim)
	}
	return vecs, nil
}
