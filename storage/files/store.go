// Package files implements storage.ArtifactStore on the local filesystem.
//
// Layout under the root directory:
//
//	uploads/<uploadId>
//	outputs/<uploadId>.md
//	markers/<user>/<project>/<base>_markers.json
//	embeds/<user>/<project>/<base>_embedding.json
//
// Every write goes to a temporary file in the destination directory and is
// renamed into place, so readers never observe a partial artifact.
package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

const (
	UploadsDir = "uploads"
	OutputsDir = "outputs"
	MarkersDir = "markers"
	EmbedsDir  = "embeds"

	dirPerm  = 0o755
	filePerm = 0o644
)

// Store implements storage.ArtifactStore.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ storage.ArtifactStore = (*Store)(nil)

// New creates the directory layout under root and returns a Store.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("files: root directory is required")
	}
	for _, dir := range []string{UploadsDir, OutputsDir, MarkersDir, EmbedsDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), dirPerm); err != nil {
			return nil, err
		}
	}
	return &Store{
		root:   root,
		logger: slog.Default().With("component", "artifact-store"),
	}, nil
}

// Root returns the directory the store was opened on.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) uploadPath(id core.UploadID) (string, error) {
	if err := core.ValidateSegment(string(id)); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return filepath.Join(s.root, UploadsDir, string(id)), nil
}

func (s *Store) outputPath(id core.UploadID) (string, error) {
	name, err := core.CanonicalTextIDFor(id)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return filepath.Join(s.root, OutputsDir, name), nil
}

func (s *Store) namespaceDir(kindDir string, ns core.Namespace) (string, error) {
	if err := core.ValidateNamespace(ns); err != nil {
		return "", err
	}
	return filepath.Join(s.root, kindDir, ns.User, ns.Project), nil
}

func (s *Store) artifactPath(kindDir string, ns core.Namespace, name string) (string, error) {
	dir, err := s.namespaceDir(kindDir, ns)
	if err != nil {
		return "", err
	}
	if err := core.ValidateSegment(name); err != nil {
		return "", fmt.Errorf("artifact: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// CreateUpload stores the bytes of a new upload. The base name of id is
// claimed first: an upload sharing it under another extension, or the exact
// name being taken, is reported as storage.ErrDuplicateKey.
func (s *Store) CreateUpload(ctx context.Context, id core.UploadID, r io.Reader) (int64, string, error) {
	path, err := s.uploadPath(id)
	if err != nil {
		return 0, "", err
	}
	release, err := s.claimBase(ctx, id)
	if err != nil {
		return 0, "", err
	}

	reserved, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		release()
		if errors.Is(err, fs.ErrExist) {
			return 0, "", fmt.Errorf("%w: upload %s", storage.ErrDuplicateKey, id)
		}
		return 0, "", err
	}
	reserved.Close()

	hash := core.NewChecksum()
	var size int64
	err = writeAtomic(path, func(w io.Writer) error {
		n, err := io.Copy(io.MultiWriter(w, hash), readerWithContext(ctx, r))
		size = n
		return err
	})
	if err != nil {
		os.Remove(path)
		release()
		return 0, "", err
	}
	return size, fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// claimPath is the hidden file holding the claim on an upload base name.
func (s *Store) claimPath(id core.UploadID) string {
	return filepath.Join(s.root, UploadsDir, "."+id.Base()+".claim")
}

// claimBase creates the claim file of id's base name exclusively, then
// checks for uploads stored before claims existed. The returned func drops
// the claim.
func (s *Store) claimBase(ctx context.Context, id core.UploadID) (func(), error) {
	claim := s.claimPath(id)
	f, err := os.OpenFile(claim, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: upload base %s", storage.ErrDuplicateKey, id.Base())
		}
		return nil, err
	}
	f.Close()
	release := func() {
		if err := os.Remove(claim); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to drop upload claim", "id", id, "error", err)
		}
	}

	stored, err := s.ListUploadFiles(ctx)
	if err != nil {
		release()
		return nil, err
	}
	for _, other := range stored {
		if other.Base() == id.Base() {
			release()
			return nil, fmt.Errorf("%w: upload base %s held by %s", storage.ErrDuplicateKey, id.Base(), other)
		}
	}
	return release, nil
}

// OpenUpload opens an upload for reading.
func (s *Store) OpenUpload(ctx context.Context, id core.UploadID) (storage.Blob, int64, error) {
	path, err := s.uploadPath(id)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, notFound(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// UploadExists reports whether the upload bytes are present.
func (s *Store) UploadExists(ctx context.Context, id core.UploadID) (bool, error) {
	path, err := s.uploadPath(id)
	if err != nil {
		return false, err
	}
	return fileExists(path)
}

// DeleteUpload removes the upload bytes and releases its base name.
func (s *Store) DeleteUpload(ctx context.Context, id core.UploadID) error {
	path, err := s.uploadPath(id)
	if err != nil {
		return err
	}
	if err := remove(path); err != nil {
		return err
	}
	if err := os.Remove(s.claimPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ListUploadFiles returns every stored upload in lexical order.
func (s *Store) ListUploadFiles(ctx context.Context) ([]core.UploadID, error) {
	names, err := listDir(filepath.Join(s.root, UploadsDir), "")
	if err != nil {
		return nil, err
	}
	ids := make([]core.UploadID, len(names))
	for i, name := range names {
		ids[i] = core.UploadID(name)
	}
	return ids, nil
}

// ReadCanonicalText returns the cached canonical text of an upload.
func (s *Store) ReadCanonicalText(ctx context.Context, id core.UploadID) (string, error) {
	path, err := s.outputPath(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", notFound(err)
	}
	return string(data), nil
}

// WriteCanonicalText caches the canonical text of an upload.
func (s *Store) WriteCanonicalText(ctx context.Context, id core.UploadID, text string) error {
	path, err := s.outputPath(id)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(text))
}

// DeleteCanonicalText removes a cached canonical text.
func (s *Store) DeleteCanonicalText(ctx context.Context, id core.UploadID) error {
	path, err := s.outputPath(id)
	if err != nil {
		return err
	}
	return remove(path)
}

// ReadMarkers loads a marker artifact.
func (s *Store) ReadMarkers(ctx context.Context, ns core.Namespace, markerID string) ([]core.Marker, error) {
	var markers []core.Marker
	if err := s.readJSON(MarkersDir, ns, markerID, &markers); err != nil {
		return nil, err
	}
	if markers == nil {
		markers = []core.Marker{}
	}
	return markers, nil
}

// WriteMarkers replaces a marker artifact.
func (s *Store) WriteMarkers(ctx context.Context, ns core.Namespace, markerID string, markers []core.Marker) error {
	if markers == nil {
		markers = []core.Marker{}
	}
	return s.writeJSON(MarkersDir, ns, markerID, markers)
}

// DeleteMarkers removes a marker artifact.
func (s *Store) DeleteMarkers(ctx context.Context, ns core.Namespace, markerID string) error {
	path, err := s.artifactPath(MarkersDir, ns, markerID)
	if err != nil {
		return err
	}
	return remove(path)
}

// ListMarkers returns the namespace's marker artifact names.
func (s *Store) ListMarkers(ctx context.Context, ns core.Namespace) ([]string, error) {
	dir, err := s.namespaceDir(MarkersDir, ns)
	if err != nil {
		return nil, err
	}
	return listDir(dir, core.MarkerSuffix)
}

// ReadEmbeddings loads an embedding artifact.
func (s *Store) ReadEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) ([]core.EmbeddingRecord, error) {
	var records []core.EmbeddingRecord
	if err := s.readJSON(EmbedsDir, ns, embeddingID, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.EmbeddingRecord{}
	}
	return records, nil
}

// WriteEmbeddings replaces an embedding artifact.
func (s *Store) WriteEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string, records []core.EmbeddingRecord) error {
	if records == nil {
		records = []core.EmbeddingRecord{}
	}
	return s.writeJSON(EmbedsDir, ns, embeddingID, records)
}

// DeleteEmbeddings removes an embedding artifact.
func (s *Store) DeleteEmbeddings(ctx context.Context, ns core.Namespace, embeddingID string) error {
	path, err := s.artifactPath(EmbedsDir, ns, embeddingID)
	if err != nil {
		return err
	}
	return remove(path)
}

// ListEmbeddings returns the namespace's embedding artifact names.
func (s *Store) ListEmbeddings(ctx context.Context, ns core.Namespace) ([]string, error) {
	dir, err := s.namespaceDir(EmbedsDir, ns)
	if err != nil {
		return nil, err
	}
	return listDir(dir, core.EmbeddingSuffix)
}

func (s *Store) readJSON(kindDir string, ns core.Namespace, name string, v any) error {
	path, err := s.artifactPath(kindDir, ns, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return notFound(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrSerializationFailed, name, err)
	}
	return nil
}

func (s *Store) writeJSON(kindDir string, ns core.Namespace, name string, v any) error {
	path, err := s.artifactPath(kindDir, ns, name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", storage.ErrSerializationFailed, name, err)
	}
	return writeFileAtomic(path, data)
}

// listDir returns the names of regular files in dir ending in suffix.
// A missing directory is an empty listing.
func listDir(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if suffix != "" && !strings.HasSuffix(name, suffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func remove(path string) error {
	return notFound(os.Remove(path))
}

// notFound maps a missing file to storage.ErrNotFound and passes other errors through.
func notFound(err error) error {
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, filepath.Base(pathOf(err)))
	}
	return err
}

func pathOf(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Path
	}
	return ""
}
