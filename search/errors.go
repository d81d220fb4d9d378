package search

import "errors"

var (
	// ErrStoreRequired is returned when no artifact store is provided.
	ErrStoreRequired = errors.New("artifact store required")

	// ErrProviderRequired is returned when no embedding provider is provided.
	ErrProviderRequired = errors.New("embedding provider required")

	// ErrEmptyQuery is returned for a query with no text.
	ErrEmptyQuery = errors.New("empty query")
)
