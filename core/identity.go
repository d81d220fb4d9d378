package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Stage names a derivation step from a parent artifact to its child.
type Stage int

const (
	// StageMarker derives a marker artifact name from an upload.
	StageMarker Stage = iota + 1
	// StageEmbedding derives an embedding artifact name from a marker artifact.
	StageEmbedding
	// StageCanonicalText derives the cached text name from an upload.
	StageCanonicalText
)

const (
	// MarkerSuffix terminates every marker artifact name.
	MarkerSuffix = "_markers.json"
	// EmbeddingSuffix terminates every embedding artifact name.
	EmbeddingSuffix = "_embedding.json"
	// CanonicalTextSuffix terminates every cached canonical text name.
	CanonicalTextSuffix = ".md"
)

func (s Stage) String() string {
	switch s {
	case StageMarker:
		return "marker"
	case StageEmbedding:
		return "embedding"
	case StageCanonicalText:
		return "canonical-text"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ChildID derives the identity of the artifact produced from parentID at stage.
// It is the only place artifact names are computed from one another.
//
//	upload "X.ext"          -> marker "X_markers.json"
//	marker "X_markers.json" -> embedding "X_embedding.json"
//	upload "X.ext"          -> canonical text "X.ext.md"
func ChildID(parentID string, stage Stage) (string, error) {
	if err := ValidateSegment(parentID); err != nil {
		return "", err
	}
	switch stage {
	case StageMarker:
		return baseName(parentID) + MarkerSuffix, nil
	case StageEmbedding:
		return trimSuffixFold(parentID, MarkerSuffix) + EmbeddingSuffix, nil
	case StageCanonicalText:
		return parentID + CanonicalTextSuffix, nil
	}
	return "", fmt.Errorf("%w: unknown stage %s", ErrValidation, stage)
}

// MarkerIDFor returns the marker artifact name derived from an upload.
func MarkerIDFor(upload UploadID) (string, error) {
	return ChildID(string(upload), StageMarker)
}

// EmbeddingIDFor returns the embedding artifact name derived from a marker artifact.
func EmbeddingIDFor(markerID string) (string, error) {
	return ChildID(markerID, StageEmbedding)
}

// CanonicalTextIDFor returns the cached canonical text name for an upload.
func CanonicalTextIDFor(upload UploadID) (string, error) {
	return ChildID(string(upload), StageCanonicalText)
}

// NewUploadID builds "<unixMillis>_<user>_<project><ext>" from the original file name.
func NewUploadID(ns Namespace, originalName string, at time.Time) (UploadID, error) {
	if err := ValidateNamespace(ns); err != nil {
		return "", err
	}
	ext := filepath.Ext(filepath.Base(strings.TrimSpace(originalName)))
	id := fmt.Sprintf("%d_%s%s", at.UnixMilli(), ns.Tag(), ext)
	if err := ValidateSegment(id); err != nil {
		return "", err
	}
	return UploadID(id), nil
}

// Extension returns the lower-cased file extension of the upload, including the dot.
func (id UploadID) Extension() string {
	return strings.ToLower(filepath.Ext(string(id)))
}

// Base returns the upload name without its extension. Marker and embedding
// names are derived from it, so no two uploads may share a base.
func (id UploadID) Base() string {
	return baseName(string(id))
}

// NamedFor reports whether the upload name has the form
// "<unixMillis>_<user>_<project><ext>" for the namespace. Uploads created
// before the namespace index existed are matched this way.
func (id UploadID) NamedFor(ns Namespace) bool {
	stamp, rest, ok := strings.Cut(string(id), "_")
	if !ok || stamp == "" || strings.Trim(stamp, "0123456789") != "" {
		return false
	}
	tag := ns.Tag()
	return rest == tag || baseName(rest) == tag
}

func baseName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext)
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}
