package ai

import "errors"

var (
	// ErrUpstreamUnavailable indicates a strategy could not produce a vector.
	// It never escapes an EmbeddingProvider.
	ErrUpstreamUnavailable = errors.New("embedding upstream unavailable")

	// ErrDimensionMismatch indicates a strategy returned a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates a strategy returned no vector at all.
	ErrEmptyEmbedding = errors.New("empty embedding")

	// ErrNoAPIKey indicates the remote strategy was requested without a credential.
	ErrNoAPIKey = errors.New("remote embedding API key not configured")
)
