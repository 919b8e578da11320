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


// Package storage defines the persistence abstractions for minutes.
//
// Two repository interfaces decouple the export pipeline from its backends:
//
//   - CheckpointRepository: the set of fully exported transcripts
//   - VectorRepository: an optional vector index that records are upserted into
//
// # Implementations
//
//   - storage/file: JSON checkpoint file written by temp-file-and-rename
//   - storage/badger: BadgerDB checkpoint store and local vector index
//   - storage/pinecone: Pinecone vector index
//
// The badger implementations encode values with the mus codecs in this
// package (CheckpointEntryMUS, EmbeddedChunkMUS).
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/state", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	checkpoints := badger.NewCheckpointRepository(backend)
//	done, err := checkpoints.LoadCheckpoint(ctx)
//
// Use in tests with in-memory storage:
//
//	checkpoints, vectors, backend, err := badger.NewMemoryRepositories()
//
// # Concurrency
//
// Checkpoint repositories are single-writer. Vector repositories must be
// safe for concurrent use.
package storage
