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


package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Registry implements storage.Registry for BadgerDB.
type Registry struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.Registry = (*Registry)(nil)

// NewRegistry creates a new Registry.
func NewRegistry(backend *Backend) (*Registry, error) {
	if backend == nil {
		return nil, errors.New("registry: backend is required")
	}
	if err := backend.Update(context.Background(), backfillOwners); err != nil {
		return nil, fmt.Errorf("registry: index upload owners: %w", err)
	}
	return &Registry{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases resources. Registry has no resources of its own; the
// backend is closed by its owner.
func (r *Registry) Close() error {
	return nil
}

// EnsureUser creates the user if missing and returns its record.
func (r *Registry) EnsureUser(ctx context.Context, user string) (*core.UserInfo, error) {
	if err := core.ValidateSegment(user); err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}

	var info *core.UserInfo
	err := r.backend.Update(ctx, func(tx *badger.Txn) error {
		var err error
		info, err = ensureUser(tx, user, r.now())
		return err
	})
	return info, err
}

// UserExists reports whether the user has been registered.
func (r *Registry) UserExists(ctx context.Context, user string) (bool, error) {
	var found bool
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		found, err = keyExists(tx, makeUserKey(user))
		return err
	})
	return found, err
}

// EnsureNamespace creates the user and project if missing.
func (r *Registry) EnsureNamespace(ctx context.Context, ns core.Namespace) error {
	if err := core.ValidateNamespace(ns); err != nil {
		return err
	}
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		return ensureNamespace(tx, ns, r.now())
	})
}

// NamespaceExists reports whether the project exists under the user.
func (r *Registry) NamespaceExists(ctx context.Context, ns core.Namespace) (bool, error) {
	var found bool
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		found, err = keyExists(tx, makeProjectKey(ns))
		return err
	})
	return found, err
}

// ListUsers returns every user ordered by name.
func (r *Registry) ListUsers(ctx context.Context) ([]core.UserInfo, error) {
	var users []core.UserInfo
	prefix := []byte(userPrefix + sep)
	err := r.backend.View(func(tx *badger.Txn) error {
		return scan(tx, prefix, func(key, val []byte) error {
			createdAt, err := storage.UnmarshalTimestamp(val)
			if err != nil {
				return err
			}
			users = append(users, core.UserInfo{
				Name:      string(key[len(prefix):]),
				CreatedAt: createdAt,
			})
			return nil
		})
	})
	return users, err
}

// ListProjects returns the user's projects ordered by name.
func (r *Registry) ListProjects(ctx context.Context, user string) ([]core.ProjectInfo, error) {
	var projects []core.ProjectInfo
	err := r.backend.View(func(tx *badger.Txn) error {
		found, err := keyExists(tx, makeUserKey(user))
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}

		prefix := makeProjectScanPrefix(user)
		return scan(tx, prefix, func(key, val []byte) error {
			createdAt, err := storage.UnmarshalTimestamp(val)
			if err != nil {
				return err
			}
			projects = append(projects, core.ProjectInfo{
				Name:      string(key[len(prefix):]),
				CreatedAt: createdAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []core.ProjectInfo{}
	}
	return projects, nil
}

// IndexUpload adds an upload to the namespace index, creating the namespace if needed.
func (r *Registry) IndexUpload(ctx context.Context, ns core.Namespace, entry *core.UploadEntry) error {
	if err := core.ValidateNamespace(ns); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: upload entry is nil", core.ErrValidation)
	}
	if err := core.ValidateSegment(string(entry.ID)); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		if err := ensureNamespace(tx, ns, r.now()); err != nil {
			return err
		}
		key := makeUploadKey(ns, entry.ID)
		found, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: upload %s", storage.ErrDuplicateKey, entry.ID)
		}
		owner, err := readUploadOwner(tx, entry.ID)
		if err != nil {
			return err
		}
		if owner != nil {
			return fmt.Errorf("%w: upload %s is indexed by %s", storage.ErrDuplicateKey, entry.ID, owner)
		}
		if err := tx.Set(makeUploadOwnerKey(entry.ID), storage.MarshalNamespace(ns)); err != nil {
			return err
		}
		return tx.Set(key, storage.MarshalUploadEntry(entry))
	})
}

// UnindexUpload removes an upload from the namespace index.
func (r *Registry) UnindexUpload(ctx context.Context, ns core.Namespace, id core.UploadID) error {
	return r.backend.Update(ctx, func(tx *badger.Txn) error {
		key := makeUploadKey(ns, id)
		found, err := keyExists(tx, key)
		if err != nil {
			return err
		}
		if !found {
			return storage.ErrNotFound
		}
		owner, err := readUploadOwner(tx, id)
		if err != nil {
			return err
		}
		if owner != nil && *owner == ns {
			if err := tx.Delete(makeUploadOwnerKey(id)); err != nil {
				return err
			}
		}
		return tx.Delete(key)
	})
}

// UploadOwner returns the namespace that indexed the upload.
func (r *Registry) UploadOwner(ctx context.Context, id core.UploadID) (core.Namespace, error) {
	var owner *core.Namespace
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		owner, err = readUploadOwner(tx, id)
		if err != nil {
			return err
		}
		if owner == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return core.Namespace{}, err
	}
	return *owner, nil
}

// GetUpload retrieves an index entry.
func (r *Registry) GetUpload(ctx context.Context, ns core.Namespace, id core.UploadID) (*core.UploadEntry, error) {
	var entry *core.UploadEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		entry, err = readUploadEntry(tx, makeUploadKey(ns, id))
		if err != nil {
			return err
		}
		if entry == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return entry, err
}

// ListUploads returns the namespace's index entries ordered by ID.
func (r *Registry) ListUploads(ctx context.Context, ns core.Namespace) ([]*core.UploadEntry, error) {
	entries := []*core.UploadEntry{}
	err := r.backend.View(func(tx *badger.Txn) error {
		return scan(tx, makeUploadScanPrefix(ns), func(_, val []byte) error {
			entry, err := storage.UnmarshalUploadEntry(val)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ensureUser writes the user record unless it exists.
func ensureUser(tx *badger.Txn, user string, now time.Time) (*core.UserInfo, error) {
	key := makeUserKey(user)
	item, err := tx.Get(key)
	switch {
	case err == nil:
		var createdAt time.Time
		err = item.Value(func(val []byte) error {
			createdAt, err = storage.UnmarshalTimestamp(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		return &core.UserInfo{Name: user, CreatedAt: createdAt}, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		if err := tx.Set(key, storage.MarshalTimestamp(now)); err != nil {
			return nil, err
		}
		return &core.UserInfo{Name: user, CreatedAt: now}, nil
	default:
		return nil, err
	}
}

// ensureNamespace writes the user and project records unless they exist.
func ensureNamespace(tx *badger.Txn, ns core.Namespace, now time.Time) error {
	if _, err := ensureUser(tx, ns.User, now); err != nil {
		return err
	}
	key := makeProjectKey(ns)
	found, err := keyExists(tx, key)
	if err != nil || found {
		return err
	}
	return tx.Set(key, storage.MarshalTimestamp(now))
}

// keyExists reports whether key is present.
func keyExists(tx *badger.Txn, key []byte) (bool, error) {
	_, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// readUploadEntry returns nil, nil when the key is absent.
func readUploadEntry(tx *badger.Txn, key []byte) (*core.UploadEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.UploadEntry
	err = item.Value(func(val []byte) error {
		entry, err = storage.UnmarshalUploadEntry(val)
		return err
	})
	return entry, err
}

// readUploadOwner returns nil, nil when no namespace has indexed the upload.
func readUploadOwner(tx *badger.Txn, id core.UploadID) (*core.Namespace, error) {
	item, err := tx.Get(makeUploadOwnerKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ns core.Namespace
	err = item.Value(func(val []byte) error {
		ns, err = storage.UnmarshalNamespace(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ns, nil
}

// backfillOwners writes the reverse index for entries indexed before it existed.
func backfillOwners(tx *badger.Txn) error {
	missing, err := unownedUploads(tx)
	if err != nil {
		return err
	}
	for id, ns := range missing {
		if err := tx.Set(makeUploadOwnerKey(id), storage.MarshalNamespace(ns)); err != nil {
			return err
		}
	}
	return nil
}

// unownedUploads maps each indexed upload lacking a reverse key to its namespace.
func unownedUploads(tx *badger.Txn) (map[core.UploadID]core.Namespace, error) {
	prefix := []byte(uploadPrefix + sep)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	missing := make(map[core.UploadID]core.Namespace)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		parts := strings.Split(string(iter.Item().Key()[len(prefix):]), sep)
		if len(parts) != 3 {
			continue
		}
		id := core.UploadID(parts[2])
		if _, claimed := missing[id]; claimed {
			continue
		}
		found, err := keyExists(tx, makeUploadOwnerKey(id))
		if err != nil {
			return nil, err
		}
		if !found {
			missing[id] = core.Namespace{User: parts[0], Project: parts[1]}
		}
	}
	return missing, nil
}

// scan calls fn for every key under prefix in key order. Keys with a
// further separator below the prefix are skipped.
func scan(tx *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)
		if strings.Contains(string(key[len(prefix):]), sep) {
			continue
		}
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}
