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


// Package openai provides the remote embedding strategy for OpenAI-compatible APIs.
//
// The strategy uses the langchaingo OpenAI client. It only joins a chain
// when an API key is configured, throttles requests with a token bucket and
// retries failed requests with exponential backoff.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    ai.WithRemoteRateLimit(2),
//	)
//	strategy, err := openai.New(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vec, err := strategy.EmbedText(ctx, "Quarterly revenue grew by twelve percent")
//
// Models that return more components than the configured dimension, such
// as text-embedding-3-small with its 1536-dimensional output, are shortened
// by truncation followed by renormalization.
package openai
