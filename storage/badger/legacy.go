package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// legacyDB mirrors the JSON registry file: users keyed by name, each with
// projects keyed by name.
type legacyDB struct {
	Users map[string]struct {
		CreatedAt string `json:"createdAt"`
		Projects  map[string]struct {
			CreatedAt string `json:"createdAt"`
		} `json:"projects"`
	} `json:"users"`
}

// legacyUpload mirrors one record of the JSON upload index.
type legacyUpload struct {
	Username    string `json:"username"`
	ProjectName string `json:"projectName"`
	Filename    string `json:"filename"`
}

// ImportStats counts what ImportLegacy did.
type ImportStats struct {
	Users    int
	Projects int
	Uploads  int
	Skipped  int
}

// ImportLegacy copies a JSON registry file and a JSON upload index into the
// registry. Either path may be empty or point at a missing file. Existing
// records are kept; the import is idempotent.
func (r *Registry) ImportLegacy(ctx context.Context, dbPath, uploadsPath string) (*ImportStats, error) {
	stats := &ImportStats{}

	var db legacyDB
	if err := readLegacyJSON(dbPath, &db); err != nil {
		return nil, fmt.Errorf("read %s: %w", dbPath, err)
	}
	var uploads []legacyUpload
	if err := readLegacyJSON(uploadsPath, &uploads); err != nil {
		return nil, fmt.Errorf("read %s: %w", uploadsPath, err)
	}

	users := make([]string, 0, len(db.Users))
	for name := range db.Users {
		users = append(users, name)
	}
	sort.Strings(users)

	for _, name := range users {
		user := db.Users[name]
		userName, err := core.CleanSegment(name)
		if err != nil {
			stats.Skipped++
			continue
		}
		userCreated := parseLegacyTime(user.CreatedAt, r.now())
		err = r.backend.Update(ctx, func(tx *badger.Txn) error {
			_, err := ensureUser(tx, userName, userCreated)
			return err
		})
		if err != nil {
			return stats, err
		}
		stats.Users++

		for projName, proj := range user.Projects {
			ns, err := core.NewNamespace(userName, projName)
			if err != nil {
				stats.Skipped++
				continue
			}
			created := parseLegacyTime(proj.CreatedAt, userCreated)
			if err := r.backend.Update(ctx, func(tx *badger.Txn) error {
				return ensureNamespace(tx, ns, created)
			}); err != nil {
				return stats, err
			}
			stats.Projects++
		}
	}

	for _, rec := range uploads {
		ns, err := core.NewNamespace(rec.Username, rec.ProjectName)
		if err != nil {
			stats.Skipped++
			continue
		}
		id := core.UploadID(filepath.Base(strings.TrimSpace(rec.Filename)))
		if core.ValidateSegment(string(id)) != nil {
			stats.Skipped++
			continue
		}

		entry := &core.UploadEntry{
			ID:           id,
			OriginalName: string(id),
			CreatedAt:    uploadTimeFromID(id, r.now()),
		}
		err = r.IndexUpload(ctx, ns, entry)
		switch {
		case err == nil:
			stats.Uploads++
		case errors.Is(err, storage.ErrDuplicateKey):
			stats.Skipped++
		default:
			return stats, err
		}
	}

	return stats, nil
}

func readLegacyJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func parseLegacyTime(s string, fallback time.Time) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

// uploadTimeFromID recovers the creation time from a "<unixMillis>_..." ID.
func uploadTimeFromID(id core.UploadID, fallback time.Time) time.Time {
	prefix, _, ok := strings.Cut(string(id), "_")
	if !ok {
		return fallback
	}
	ms, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return fallback
	}
	return time.UnixMilli(ms).UTC()
}
