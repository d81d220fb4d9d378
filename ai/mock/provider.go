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


package mock

import (
	"context"
	"sync"

	"github.com/poiesic/docpipe/ai"
)

// MockProvider is a test double for ai.EmbeddingProvider.
// It embeds with a MockStrategy and records every text it receives.
type MockProvider struct {
	strategy *MockStrategy
	dim      int

	mu     sync.Mutex
	texts  []string
	closed bool
}

var _ ai.EmbeddingProvider = (*MockProvider)(nil)

// NewMockProvider creates a provider returning deterministic vectors of length dim.
func NewMockProvider(dim int) *MockProvider {
	s := NewMockStrategy("mock")
	s.Dim = dim
	return &MockProvider{strategy: s, dim: dim}
}

// GetMockStrategy returns the underlying strategy for assertions and injection.
func (p *MockProvider) GetMockStrategy() *MockStrategy {
	return p.strategy
}

// Embed returns the strategy's vector. Strategy errors yield a zero vector
// so the provider stays total.
func (p *MockProvider) Embed(ctx context.Context, text string) ai.Vector {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	vec, err := p.strategy.EmbedText(ctx, text)
	if err != nil || len(vec) != p.dim {
		return ai.Vector{Values: make([]float32, p.dim), Strategy: "zero"}
	}
	return ai.Vector{Values: vec, Strategy: p.strategy.Name()}
}

// Dimension returns the configured vector length.
func (p *MockProvider) Dimension() int {
	return p.dim
}

// Texts returns a copy of every text passed to Embed, in call order.
func (p *MockProvider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
