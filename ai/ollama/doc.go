// Package ollama provides the local embedding strategy backed by an Ollama
// server.
//
// The model client is created and probed on first use, at most once per
// Strategy. If that load fails the strategy stays unavailable for the
// life of the instance and every call reports ai.ErrUpstreamUnavailable,
// letting the chain move on without paying the load cost again.
package ollama
