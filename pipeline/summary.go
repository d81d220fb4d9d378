package pipeline

import (
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
)

// MarkerItem is the outcome of marker derivation for one upload.
type MarkerItem struct {
	Upload   core.UploadID
	MarkerID string
	Fields   int
	// Skipped is set for uploads whose file type has no extractor.
	Skipped bool
	Err     error
}

// MarkerSummary reports a marker derivation run.
type MarkerSummary struct {
	RunID     uuid.UUID
	Namespace core.Namespace
	Items     []MarkerItem
}

// Written returns the number of marker artifacts written.
func (s *MarkerSummary) Written() int {
	n := 0
	for _, item := range s.Items {
		if !item.Skipped && item.Err == nil {
			n++
		}
	}
	return n
}

// EmbeddingItem is the outcome of embedding derivation for one marker artifact.
type EmbeddingItem struct {
	MarkerID    string
	EmbeddingID string
	Embedded    int
	Skipped     int
	// Strategies counts the vectors produced by each strategy.
	Strategies map[string]int
	Err        error
}

// EmbeddingSummary reports an embedding derivation run.
type EmbeddingSummary struct {
	RunID     uuid.UUID
	Namespace core.Namespace
	Items     []EmbeddingItem
}

// Embedded returns the total number of vectors written.
func (s *EmbeddingSummary) Embedded() int {
	n := 0
	for _, item := range s.Items {
		n += item.Embedded
	}
	return n
}

// Listing holds the artifacts of each stage in one namespace.
type Listing struct {
	Uploads    []core.UploadID
	Markers    []string
	Embeddings []string
}
