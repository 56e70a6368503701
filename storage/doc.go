// Copyright 2026 Poiesic Systems
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


// Package storage provides the storage abstraction layer for notedex.
//
// This package defines repository interfaces that decouple storage
// implementation from business logic, so different backends (BadgerDB,
// in-memory, etc.) can be used interchangeably. Consumers hold the
// interface types declared here; the badger sub-package provides the
// implementations and asserts conformance at compile time.
//
// # Architecture
//
// The storage layer splits durable record storage from vector search:
//
//   - NoteRepository: atomic persistence and retrieval of note records
//   - CheckpointRepository: resumable progress markers for maintenance jobs
//   - VectorIndex: per-field approximate nearest neighbour lookups
//
// The note repository is the source of truth; the vector index is derived
// state rebuilt from it on startup. Search results returned by the index
// carry note IDs that are resolved back to records through the repository.
//
// # Usage
//
// Open a BadgerDB-backed repository:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	notes := badger.NewNoteRepository(backend)
//
// Use in tests with in-memory storage:
//
//	notes, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository and index implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
