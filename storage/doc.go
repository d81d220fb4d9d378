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


// Package storage provides the storage abstraction layer for docpipe.
//
// Two interfaces decouple persistence from the pipeline:
//
//   - Registry: users, projects and the per-namespace upload index
//   - ArtifactStore: upload bytes, cached canonical text, marker and
//     embedding artifacts
//
// # Implementations
//
//   - storage/badger: Registry on BadgerDB with serializable transactions
//   - storage/files: ArtifactStore on the local filesystem with atomic writes
//
// Missing records are reported as ErrNotFound, which also matches
// core.ErrNotFound, so callers can test either sentinel.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/var/lib/docpipe/registry", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	registry, err := badger.NewRegistry(backend)
//	store, err := files.New("/var/lib/docpipe")
//
// Use in tests with in-memory storage:
//
//	registry, backend, err := badger.NewMemoryRegistry()
package storage
