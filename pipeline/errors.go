package pipeline

import "errors"

var (
	// ErrRegistryRequired is returned when a namespace registry is not provided.
	ErrRegistryRequired = errors.New("registry required")

	// ErrStoreRequired is returned when an artifact store is not provided.
	ErrStoreRequired = errors.New("artifact store required")

	// ErrProviderRequired is returned when an embedding provider is not provided.
	ErrProviderRequired = errors.New("embedding provider required")

	// ErrIDExhausted is returned when no free upload ID was found.
	ErrIDExhausted = errors.New("no free upload id")
)
