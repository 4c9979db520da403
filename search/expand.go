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

package search

import (
	"context"

	"github.com/poiesic/docbot/core"
)

// Expand replaces the selected citations with the full documents they came
// from. indices are 1-based positions in results; out-of-range entries are
// ignored. Chunks are returned in citation order and then source order, with
// repeated content removed. A citation whose document cannot be fetched
// contributes itself.
func (s *Searcher) Expand(ctx context.Context, results []*core.SearchResult, indices []int) ([]*core.Chunk, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	var citations []*core.SearchResult
	for _, i := range indices {
		if i < 1 || i > len(results) {
			s.logger.Warn("ignoring citation index", "index", i, "results", len(results))
			continue
		}
		citations = append(citations, results[i-1])
	}
	if len(citations) == 0 {
		return nil, ErrNoCitations
	}

	var (
		expanded []*core.Chunk
		seen     = make(map[string]struct{})
	)
	for _, citation := range citations {
		for _, chunk := range s.document(ctx, citation) {
			if chunk.Content == "" {
				continue
			}
			if _, ok := seen[chunk.Content]; ok {
				continue
			}
			seen[chunk.Content] = struct{}{}
			expanded = append(expanded, chunk)
		}
	}
	if len(expanded) == 0 {
		return nil, ErrNoResults
	}
	return expanded, nil
}

func (s *Searcher) document(ctx context.Context, citation *core.SearchResult) []*core.Chunk {
	if citation.Chunk == nil {
		return nil
	}
	if citation.Chunk.URL == "" {
		return []*core.Chunk{citation.Chunk}
	}
	chunks, err := s.store.FetchByURL(ctx, citation.Chunk.URL)
	if err != nil {
		s.logger.Warn("failed to fetch full document", "url", citation.Chunk.URL, "err", err)
		return []*core.Chunk{citation.Chunk}
	}
	if len(chunks) == 0 {
		s.logger.Warn("no chunks stored for citation", "url", citation.Chunk.URL)
		return []*core.Chunk{citation.Chunk}
	}
	return chunks
}
