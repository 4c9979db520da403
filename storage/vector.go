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
	"math"
	"slices"

	"github.com/poiesic/docbot/core"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is zero or their lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Scored is a candidate id with its similarity to a query.
type Scored struct {
	ID    string
	Score float32
}

// TopK sorts candidates by descending score, ties broken by id, and keeps
// the first k.
func TopK(candidates []Scored, k int) []Scored {
	slices.SortFunc(candidates, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// NewSearchResult pairs a chunk with its score. Distance is 1 - score.
func NewSearchResult(chunk *core.Chunk, score float32) *core.SearchResult {
	return &core.SearchResult{
		Chunk:    chunk,
		Score:    score,
		Distance: 1 - score,
	}
}

// SortByIndex orders chunks of one document by position.
func SortByIndex(chunks []*core.Chunk) {
	slices.SortStableFunc(chunks, func(a, b *core.Chunk) int {
		return a.Index - b.Index
	})
}
