// Package chain provides the ordered embedding provider.
//
// A Provider tries its strategies in order and returns the first vector of
// the right dimension. The last link is always the deterministic fallback,
// so Embed never fails.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/fallback"
	"github.com/poiesic/docpipe/ai/ollama"
	"github.com/poiesic/docpipe/ai/openai"
)

// Provider implements ai.EmbeddingProvider over an explicit strategy chain.
type Provider struct {
	strategies []ai.Strategy
	terminal   *fallback.Strategy
	dim        int
	logger     *slog.Logger
}

var _ ai.EmbeddingProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a provider that tries strategies in order and then falls back
// to the deterministic strategy of the same dimension.
func New(dim int, strategies []ai.Strategy, opts ...Option) *Provider {
	if dim <= 0 {
		dim = ai.DefaultDimension
	}
	p := &Provider{
		strategies: append([]ai.Strategy(nil), strategies...),
		terminal:   fallback.New(dim),
		dim:        dim,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "embedding-chain")
	return p
}

// FromConfig builds the standard chain: local model unless disabled, remote
// API when an API key is set, then the deterministic fallback.
func FromConfig(config *ai.Config, opts ...Option) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var strategies []ai.Strategy
	if !config.DisableLocal {
		local, err := ollama.New(config)
		if err != nil {
			return nil, fmt.Errorf("local strategy: %w", err)
		}
		strategies = append(strategies, local)
	}
	if config.RemoteEnabled() {
		remote, err := openai.New(config)
		if err != nil {
			return nil, fmt.Errorf("remote strategy: %w", err)
		}
		strategies = append(strategies, remote)
	}
	return New(config.Dimension, strategies, opts...), nil
}

// Dimension returns the length of every vector produced by Embed.
func (p *Provider) Dimension() int {
	return p.dim
}

// Strategies returns the names of the chain links in order, fallback included.
func (p *Provider) Strategies() []string {
	names := make([]string, 0, len(p.strategies)+1)
	for _, s := range p.strategies {
		names = append(names, s.Name())
	}
	return append(names, p.terminal.Name())
}

// Embed returns a vector for text. It never fails.
// Blank text goes straight to the fallback.
func (p *Provider) Embed(ctx context.Context, text string) ai.Vector {
	text = strings.TrimSpace(text)
	if text == "" {
		return ai.Vector{Values: fallback.Vector("", p.dim), Strategy: p.terminal.Name()}
	}

	for _, s := range p.strategies {
		vec, err := p.try(ctx, s, text)
		if err != nil {
			p.logger.Debug("strategy unavailable, trying next", "strategy", s.Name(), "err", err)
			continue
		}
		return ai.Vector{Values: vec, Strategy: s.Name()}
	}

	return ai.Vector{Values: fallback.Vector(text, p.dim), Strategy: p.terminal.Name()}
}

// try runs one strategy and converts every failure into ErrUpstreamUnavailable.
func (p *Provider) try(ctx context.Context, s ai.Strategy, text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec, err = nil, fmt.Errorf("%w: panic: %v", ai.ErrUpstreamUnavailable, r)
		}
	}()

	vec, err = s.EmbedText(ctx, text)
	if err != nil {
		if !errors.Is(err, ai.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", ai.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	if len(vec) != p.dim {
		p.logger.Warn("strategy returned wrong dimension", "strategy", s.Name(), "got", len(vec), "want", p.dim)
		return nil, fmt.Errorf("%w: %w: got %d, want %d", ai.ErrUpstreamUnavailable, ai.ErrDimensionMismatch, len(vec), p.dim)
	}
	return vec, nil
}

// Warmup initializes every strategy that supports it and reports whether
// the first strategy in the chain is ready.
func (p *Provider) Warmup(ctx context.Context) bool {
	ready := len(p.strategies) == 0
	for i, s := range p.strategies {
		w, ok := s.(ai.Warmer)
		if !ok {
			if i == 0 {
				ready = true
			}
			continue
		}
		ok = w.Warmup(ctx)
		p.logger.Info("strategy warmup", "strategy", s.Name(), "ready", ok)
		if i == 0 {
			ready = ok
		}
	}
	return ready
}

// Close releases strategy resources. Strategies hold no resources that need
// explicit cleanup today.
func (p *Provider) Close() error {
	p.logger.Debug("closing embedding chain")
	return nil
}
