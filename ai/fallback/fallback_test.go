package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_GoldenValues(t *testing.T) {
	tests := []struct {
		text  string
		first []float64
		last  float64
	}{
		{
			text:  "hello world",
			first: []float64{-0.0466028750, 0.649072875, 0.629914708, 0.00952961249},
			last:  -0.754956960,
		},
		{
			text:  "Quarterly revenue grew by twelve percent",
			first: []float64{0.580864231, 0.780156536, 0.445315723, -0.0925838156},
			last:  -0.997090879,
		},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			vec := Vector(tt.text, 384)
			require.Len(t, vec, 384)
			for i, want := range tt.first {
				assert.InDelta(t, want, vec[i], 1e-6, "component %d", i)
			}
			assert.InDelta(t, tt.last, vec[383], 1e-6)
		})
	}
}

func TestVector_Deterministic(t *testing.T) {
	a := Vector("same input", 384)
	b := Vector("same input", 384)
	c := Vector("other input", 384)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestVector_Range(t *testing.T) {
	for _, text := range []string{"", "x", "a much longer piece of marker text"} {
		for i, v := range Vector(text, 1024) {
			assert.GreaterOrEqual(t, v, float32(-1), "component %d of %q", i, text)
			assert.LessOrEqual(t, v, float32(1), "component %d of %q", i, text)
		}
	}
}

func TestVector_PrefixStable(t *testing.T) {
	short := Vector("prefix", 8)
	long := Vector("prefix", 16)
	assert.Equal(t, short, long[:8])
}

func TestStrategy(t *testing.T) {
	s := New(0)
	assert.Equal(t, "deterministic", s.Name())
	assert.Equal(t, 384, s.Dimension())

	vec, err := s.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, Vector("hello world", 384), vec)

	vecs, err := s.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, Vector("b", 384), vecs[1])
}
