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


// Package ai provides the embedding abstractions used by docpipe.
//
// # Design
//
// The package is built around three interfaces:
//
//   - Embedder: generates vector embeddings from text
//   - Strategy: an Embedder with a name, one link of a fallback chain
//   - EmbeddingProvider: a total function from text to a fixed-dimension Vector
//
// Strategies may fail. A provider never does: it walks its strategies in
// order and ends in a deterministic strategy that always answers, so the
// pipeline never sees an embedding error.
//
// # Implementation Packages
//
//   - ai/chain: the ordered EmbeddingProvider
//   - ai/ollama: local semantic model served by Ollama, loaded lazily
//   - ai/openai: remote OpenAI-compatible API, enabled by an API key
//   - ai/fallback: SHA-256 seeded pseudo-random vectors
//   - ai/mock: test doubles
//
// Public constructors of production strategies return concrete types so the
// chain can discover optional behaviour such as Warmer. Test doubles in
// ai/mock expose call counts and function fields for behaviour injection.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := chain.FromConfig(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec := provider.Embed(ctx, "Quarterly revenue grew by twelve percent")
//	fmt.Println(vec.Strategy, len(vec.Values))
package ai
