package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Strategy is one link in an embedding chain.
// A strategy that cannot serve a request returns an error and the chain
// moves on to the next one.
type Strategy interface {
	Embedder

	// Name identifies the strategy in logs, metrics and summaries.
	Name() string
}

// Warmer is implemented by strategies with an expensive first use.
type Warmer interface {
	// Warmup forces initialization and reports whether the strategy is usable.
	Warmup(ctx context.Context) bool
}

// Vector is an embedding together with the strategy that produced it.
type Vector struct {
	Values   []float32
	Strategy string
}

// EmbeddingProvider turns text into fixed-dimension vectors.
// Embed never fails; every vector it returns has length Dimension().
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) Vector

	// Dimension is the length of every vector returned by Embed.
	Dimension() int

	// Close releases resources held by the provider and its strategies.
	Close() error
}
