// Package mock provides test double implementations of the ai interfaces.
//
// The mocks let tests run without a model server and give controlled,
// deterministic behaviour.
//
// # Usage in Tests
//
//	// A strategy that always fails, to exercise chain fall-through
//	broken := mock.NewMockStrategy("local")
//	broken.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("model not loaded")
//	}
//
//	// A provider that records every text it embeds
//	provider := mock.NewMockProvider(384)
//	vec := provider.Embed(ctx, "some marker text")
//	texts := provider.Texts()
//
// # Default Behavior
//
//   - MockStrategy: returns deterministic unit vectors based on a text hash
//   - MockProvider: wraps a MockStrategy and never fails
package mock
