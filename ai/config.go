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


package ai

import (
	"errors"
	"strings"
	"time"
)

// DefaultDimension is the vector length produced by the default local model
// and by the deterministic fallback.
const DefaultDimension = 384

// Config holds configuration for the embedding strategies.
type Config struct {
	// LocalHost is the base URL of the local model server.
	// Example: "http://localhost:11434" for Ollama
	LocalHost string

	// LocalModel is the local embedding model identifier.
	// Example: "all-minilm" (384 dimensions)
	LocalModel string

	// DisableLocal removes the local strategy from the chain.
	DisableLocal bool

	// RemoteHost is the base URL of the OpenAI-compatible remote API.
	RemoteHost string

	// RemoteModel is the remote embedding model identifier.
	// Example: "text-embedding-3-small"
	RemoteModel string

	// APIKey enables the remote strategy when non-empty.
	APIKey string

	// Dimension is the length of every vector in an embedding artifact.
	// Default: 384
	Dimension int

	// RemoteRPS caps remote requests per second. Zero means unlimited.
	RemoteRPS float64

	// RemoteMaxAttempts is the number of tries per remote request.
	// Default: 1
	RemoteMaxAttempts int

	// RemoteRetryDelay is the base delay for remote retries (doubles on each retry).
	RemoteRetryDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithLocalHost sets the local model server URL.
func WithLocalHost(host string) ConfigOption {
	return func(c *Config) {
		c.LocalHost = host
	}
}

// WithLocalModel sets the local embedding model identifier.
func WithLocalModel(model string) ConfigOption {
	return func(c *Config) {
		c.LocalModel = model
	}
}

// WithoutLocal removes the local strategy from the chain.
func WithoutLocal() ConfigOption {
	return func(c *Config) {
		c.DisableLocal = true
	}
}

// WithRemoteHost sets the remote API base URL.
func WithRemoteHost(host string) ConfigOption {
	return func(c *Config) {
		c.RemoteHost = host
	}
}

// WithRemoteModel sets the remote embedding model identifier.
func WithRemoteModel(model string) ConfigOption {
	return func(c *Config) {
		c.RemoteModel = model
	}
}

// WithAPIKey sets the remote API credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimension sets the embedding vector length.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithRemoteRateLimit caps remote requests per second.
func WithRemoteRateLimit(rps float64) ConfigOption {
	return func(c *Config) {
		c.RemoteRPS = rps
	}
}

// WithRemoteRetry sets the remote attempt count and base backoff delay.
func WithRemoteRetry(maxAttempts int, baseDelay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RemoteMaxAttempts = maxAttempts
		c.RemoteRetryDelay = baseDelay
	}
}

// DefaultConfig returns a Config for a local Ollama server with the remote
// strategy disabled until an API key is supplied.
func DefaultConfig() *Config {
	return &Config{
		LocalHost:         "http://localhost:11434",
		LocalModel:        "all-minilm",
		RemoteHost:        "https://api.openai.com/v1",
		RemoteModel:       "text-embedding-3-small",
		Dimension:         DefaultDimension,
		RemoteRPS:         5,
		RemoteMaxAttempts: 1,
		RemoteRetryDelay:  500 * time.Millisecond,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithRemoteRateLimit(2),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// RemoteEnabled reports whether the remote strategy belongs in the chain.
func (c *Config) RemoteEnabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Normalize ensures the configuration is in a canonical form.
// The remote host gets the /v1 suffix required by OpenAI-compatible APIs;
// the local host loses any trailing slash or /v1 suffix since Ollama's
// native API lives at the server root.
func (c *Config) Normalize() {
	if c.RemoteHost != "" && !strings.HasSuffix(c.RemoteHost, "/v1") {
		c.RemoteHost = strings.TrimSuffix(c.RemoteHost, "/") + "/v1"
	}
	c.LocalHost = strings.TrimSuffix(strings.TrimSuffix(c.LocalHost, "/"), "/v1")
	c.APIKey = strings.TrimSpace(c.APIKey)
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be greater than 0")
	}
	if !c.DisableLocal {
		if c.LocalHost == "" {
			return errors.New("ai config: LocalHost is required unless the local strategy is disabled")
		}
		if c.LocalModel == "" {
			return errors.New("ai config: LocalModel is required unless the local strategy is disabled")
		}
	}
	if c.RemoteEnabled() {
		if c.RemoteHost == "" {
			return errors.New("ai config: RemoteHost is required when an API key is set")
		}
		if c.RemoteModel == "" {
			return errors.New("ai config: RemoteModel is required when an API key is set")
		}
	}
	if c.RemoteRPS < 0 {
		return errors.New("ai config: RemoteRPS cannot be negative")
	}
	if c.RemoteMaxAttempts < 1 {
		return errors.New("ai config: RemoteMaxAttempts must be at least 1")
	}
	return nil
}
