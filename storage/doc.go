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

// Package storage defines the vector store contract used by ingestion and
// search, plus the encoding and similarity helpers shared by its backends.
//
// # Constructor Return Type Pattern
//
// Backend constructors return the VectorStore interface:
//
//	store, err := badger.Open(path, storage.DefaultCollection, storage.EmbedderProbe(embedder))
//
// Tests use the in-memory variant:
//
//	store, err := badger.NewMemoryStore(storage.DefaultCollection, 384)
//
// # Collections
//
// A store serves one named collection. The collection's vector dimension
// is fixed when it is created, by calling a DimensionProbe, and re-probed on
// Clear so a cleared store always matches the current embedding model.
// Upserts whose vectors have another length fail with ErrDimensionMismatch.
//
// # Identifiers
//
// Chunks are keyed by their UUID id. See NormalizeID for how other ids are
// handled.
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
package storage
