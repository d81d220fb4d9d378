package core

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Namespace scopes every artifact to a user and one of their projects.
type Namespace struct {
	User    string
	Project string
}

// NewNamespace trims and validates both segments.
func NewNamespace(user, project string) (Namespace, error) {
	ns := Namespace{User: strings.TrimSpace(user), Project: strings.TrimSpace(project)}
	if err := ValidateNamespace(ns); err != nil {
		return Namespace{}, err
	}
	return ns, nil
}

// String returns "user/project".
func (n Namespace) String() string {
	return n.User + "/" + n.Project
}

// Tag returns the "user_project" fragment embedded in upload identities.
func (n Namespace) Tag() string {
	return n.User + "_" + n.Project
}

// ArtifactKind identifies one of the three pipeline stages.
type ArtifactKind string

const (
	KindUpload    ArtifactKind = "upload"
	KindMarker    ArtifactKind = "marker"
	KindEmbedding ArtifactKind = "embed"
)

// ParseArtifactKind maps a user-supplied kind to an ArtifactKind.
// "embedding" is accepted as an alias for "embed".
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "upload":
		return KindUpload, nil
	case "marker", "markers":
		return KindMarker, nil
	case "embed", "embedding", "embeddings":
		return KindEmbedding, nil
	}
	return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrUnknownKind, s)
}

// UploadID identifies a raw upload artifact.
type UploadID string

// Marker is a single (field, value) record derived from canonical text.
type Marker struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// EmbeddingRecord pairs a marker with its vector.
type EmbeddingRecord struct {
	Field     string    `json:"field"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// UploadEntry is the namespace index entry for an upload.
type UploadEntry struct {
	ID           UploadID
	OriginalName string
	ContentType  string
	Size         int64
	Checksum     string
	CreatedAt    time.Time
}

// UserInfo describes a registered user.
type UserInfo struct {
	Name      string
	CreatedAt time.Time
}

// ProjectInfo describes a project under a user.
type ProjectInfo struct {
	Name      string
	CreatedAt time.Time
}

// NewChecksum returns the BLAKE2b-256 hash used for upload checksums.
func NewChecksum() hash.Hash {
	h, _ := blake2b.New(32, nil)
	return h
}

// ChecksumOf returns the hex BLAKE2b-256 digest of data.
func ChecksumOf(data []byte) string {
	h := NewChecksum()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
