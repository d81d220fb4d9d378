// Package fallback provides the deterministic last link of an embedding chain.
//
// Vectors are derived from the SHA-256 digest of the text: the first four
// digest bytes, read big-endian, seed a mulberry32 generator and each
// component is rnd*2-1. The same text always yields the same vector, across
// runs and processes, so artifacts produced offline stay reproducible.
package fallback

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/poiesic/docpipe/ai"
)

// Name identifies vectors produced by the fallback strategy.
const Name = "deterministic"

// Strategy implements ai.Strategy. It never returns an error.
type Strategy struct {
	dim int
}

var _ ai.Strategy = (*Strategy)(nil)

// New creates a fallback strategy producing vectors of length dim.
// A non-positive dim selects ai.DefaultDimension.
func New(dim int) *Strategy {
	if dim <= 0 {
		dim = ai.DefaultDimension
	}
	return &Strategy{dim: dim}
}

// Name returns "deterministic".
func (s *Strategy) Name() string {
	return Name
}

// Dimension returns the vector length.
func (s *Strategy) Dimension() int {
	return s.dim
}

// EmbedText returns Vector(text, dim).
func (s *Strategy) EmbedText(_ context.Context, text string) ([]float32, error) {
	return Vector(text, s.dim), nil
}

// EmbedTexts returns one deterministic vector per text.
func (s *Strategy) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = Vector(text, s.dim)
	}
	return out, nil
}

// Vector computes the deterministic embedding of text.
// Components lie in [-1, 1); the vector is not normalized.
func Vector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := mulberry32(binary.BigEndian.Uint32(sum[:4]))

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(rng.next()*2 - 1)
	}
	return vec
}

// mulberry32 is a 32-bit state PRNG. All arithmetic wraps at 32 bits.
type mulberry32 uint32

func (m *mulberry32) next() float64 {
	*m += 0x6d2b79f5
	t := uint32(*m)
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return float64(t^t>>14) / 4294967296
}
