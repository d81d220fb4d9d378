package storage

import (
	"context"
	"io"

	"github.com/poiesic/docpipe/core"
)

// Registry records which namespaces exist and which uploads belong to them.
// Implementations must be thread-safe and support concurrent access.
type Registry interface {
	// EnsureUser creates the user if missing and returns its record.
	EnsureUser(ctx context.Context, user string) (*core.UserInfo, error)

	// UserExists reports whether the user has been registered.
	UserExists(ctx context.Context, user string) (bool, error)

	// EnsureNamespace creates the user and project if missing.
	// Idempotent; concurrent callers never lose each other's writes.
	EnsureNamespace(ctx context.Context, ns core.Namespace) error

	// NamespaceExists reports whether the project exists under the user.
	NamespaceExists(ctx context.Context, ns core.Namespace) (bool, error)

	// ListUsers returns every user ordered by name.
	ListUsers(ctx context.Context) ([]core.UserInfo, error)

	// ListProjects returns the user's projects ordered by name.
	// Returns ErrNotFound if the user doesn't exist.
	ListProjects(ctx context.Context, user string) ([]core.ProjectInfo, error)

	// IndexUpload adds an upload to the namespace index, creating the
	// namespace if needed. Returns ErrDuplicateKey if any namespace already
	// indexed the ID.
	IndexUpload(ctx context.Context, ns core.Namespace, entry *core.UploadEntry) error

	// UnindexUpload removes an upload from the namespace index.
	// Returns ErrNotFound if it was not indexed.
	UnindexUpload(ctx context.Context, ns core.Namespace, id core.UploadID) error

	// GetUpload retrieves an index entry.
	// Returns ErrNotFound if it was not indexed.
	GetUpload(ctx context.Context, ns core.Namespace, id core.UploadID) (*core.UploadEntry, error)

	// ListUploads returns the namespace's index entries ordered by ID.
	ListUploads(ctx context.Context, ns core.Namespace) ([]*core.UploadEntry, error)

	// UploadOwner returns the namespace that indexed the upload.
	// Returns ErrNotFound if no namespace has indexed it.
	UploadOwner(ctx context.Context, id core.UploadID) (core.Namespace, error)

	// Close releases resources.
	Close() error
}

// Blob is an opened upload.
type Blob interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

// ArtifactStore persists uploads and the artifacts derived from them.
// Every method returns ErrNotFound for a missing artifact and a
// core.ErrValidation error for an identifier that is not a safe segment.
type ArtifactStore interface {
	// CreateUpload stores the bytes of a new upload.
	// Returns ErrDuplicateKey if the ID is taken.
	CreateUpload(ctx context.Context, id core.UploadID, r io.Reader) (size int64, checksum string, err error)

	// OpenUpload opens an upload for reading. The caller closes the Blob.
	OpenUpload(ctx context.Context, id core.UploadID) (Blob, int64, error)

	// UploadExists reports whether the upload bytes are present.
	UploadExists(ctx context.Context, id core.UploadID) (bool, error)

	// DeleteUpload removes the upload bytes.
	DeleteUpload(ctx context.Context, id core.UploadID) error

	// ListUploadFiles returns every stored upload regardless of namespace.
	ListUploadFiles(ctx context.Context) ([]core.UploadID, error)

	// ReadCanonicalText returns the cached canonical text of an upload.
	ReadCanonicalText(ctx context.Context, id core.UploadID) (string, error)

	// WriteCanonicalText caches the canonical text of an upload.
	WriteCanonicalText(ctx context.Context, id core.UploadID, text string) error

	// DeleteCanonicalText removes a cached canonical text.
	DeleteCanonicalText(ctx context.Context, id core.UploadID) error

	// ReadMarkers loads a marker artifact.
	ReadMarkers(ctx context.Context, ns core.Namespace, markerID string) ([]core.Marker, error)

	// WriteMarkers replaces a marker artifact.
	WriteMarkers(ctx context.Context, ns core.Namespace, markerID string, markers []core.Marker) error

	// DeleteMarkers removes a marker artifact.
	DeleteMarkers(ctx context.Context, ns core.Namespace, markerID string) error

	// ListMarkers returns the namespace's marker artifact names in lexical order.
	ListMarkers(ctx context.Context, ns core.Namespace) ([]string, error)

	// ReadEmbeddings loads an embedding artifact.
	ReadEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) ([]core.EmbeddingRecord, error)

	// WriteEmbeddings replaces an embedding artifact.
	WriteEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string, records []core.EmbeddingRecord) error

	// DeleteEmbeddings removes an embedding artifact.
	DeleteEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) error

	// ListEmbeddings returns the namespace's embedding artifact names in lexical order.
	ListEmbeddings(ctx context.Context, ns core.Namespace) ([]string, error)
}
