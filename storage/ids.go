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

package storage

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/docbot/core"
)

// idNamespace derives replacement keys for ids that are not UUIDs.
var idNamespace = uuid.MustParse("6f1f7a0e-3c52-5b8e-9d41-0a7c2e9b4d13")

// NormalizeID returns the key a chunk is stored under. UUIDs are kept as is.
// Any other non-empty id maps to a UUIDv5 derived from it, so repeated
// upserts of the same chunk still replace one record. An empty id gets a
// random UUID. replaced reports whether the id changed.
func NormalizeID(id string) (key string, replaced bool) {
	if core.IsValidID(id) {
		return id, false
	}
	if id == "" {
		return uuid.NewString(), true
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String(), true
}

// PrepareUpsert checks an upsert batch against the collection dimension and
// returns copies of the chunks carrying their storage keys. replaced lists
// the original ids that were rewritten.
func PrepareUpsert(chunks []*core.Chunk, vectors [][]float32, dimension int) (prepared []*core.Chunk, replaced []string, err error) {
	if len(chunks) != len(vectors) {
		return nil, nil, ErrLengthMismatch
	}
	prepared = make([]*core.Chunk, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dimension {
			return nil, nil, fmt.Errorf("%w: got %d, collection has %d", ErrDimensionMismatch, len(vectors[i]), dimension)
		}
		if chunk == nil {
			return nil, nil, fmt.Errorf("%w: chunk is nil", core.ErrInvalidChunk)
		}
		c := *chunk
		key, changed := NormalizeID(c.ID)
		if changed {
			replaced = append(replaced, c.ID)
		}
		c.ID = key
		if err := core.ValidateChunk(&c); err != nil {
			return nil, nil, err
		}
		prepared[i] = &c
	}
	return prepared, replaced, nil
}
