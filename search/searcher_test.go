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
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/poiesic/docbot/ai/mock"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/storage"
	"github.com/poiesic/docbot/storage/badger"
	"github.com/poiesic/docbot/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	valuesURL   = "https://handbook.gitlab.com/handbook/values/"
	remoteURL   = "https://handbook.gitlab.com/handbook/company/culture/all-remote/"
	directorURL = "https://about.gitlab.com/direction/"
)

var corpus = []*core.Chunk{
	storetest.MakeChunk(valuesURL, 0, 3, "Collaboration means helping others when they ask."),
	storetest.MakeChunk(valuesURL, 1, 3, "Results matter more than hours worked."),
	storetest.MakeChunk(valuesURL, 2, 3, "Efficiency favors boring solutions."),
	storetest.MakeChunk(remoteURL, 0, 1, "All-remote teams work asynchronously across time zones."),
	storetest.MakeChunk(directorURL, 0, 1, "The direction page lists product investment themes."),
}

func newTestStore(t *testing.T) storage.VectorStore {
	t.Helper()
	store, err := badger.NewMemoryStore(storage.DefaultCollection, storetest.Dimension)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Upsert(context.Background(), corpus, storetest.Vectors(corpus)))
	return store
}

func newTestSearcher(t *testing.T, opts ...Option) (*Searcher, *mock.MockEmbedder) {
	t.Helper()
	embedder := &mock.MockEmbedder{Dimension: storetest.Dimension}
	s, err := NewSearcher(newTestStore(t), embedder, opts...)
	require.NoError(t, err)
	return s, embedder
}

type recordingMonitor struct {
	query     string
	dimension int
	hits      int
	finished  bool
}

func (m *recordingMonitor) Start(query string)            { m.query = query }
func (m *recordingMonitor) AfterEmbedding(dimension int)  { m.dimension = dimension }
func (m *recordingMonitor) Hit(_ *core.SearchResult)      { m.hits++ }
func (m *recordingMonitor) Finish(_ []*core.SearchResult) { m.finished = true }

func TestNewSearcher(t *testing.T) {
	store := newTestStore(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(store, embedder)
		require.NoError(t, err)
		assert.Same(t, store, s.Store())
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		_, err := NewSearcher(store, embedder, WithLogger(nil), WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(store, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("default k out of range", func(t *testing.T) {
		_, err := NewSearcher(store, embedder, WithDefaultK(0))
		assert.Error(t, err)
		_, err = NewSearcher(store, embedder, WithDefaultK(MaxK+1))
		assert.Error(t, err)
	})
}

func TestSearch_RanksExactMatchFirst(t *testing.T) {
	s, _ := newTestSearcher(t)

	results, err := s.Search(context.Background(), "Results matter more than hours worked.", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	top := results[0]
	assert.Equal(t, core.ChunkID(valuesURL, 1), top.Chunk.ID)
	assert.InDelta(t, 1.0, top.Similarity, 1e-4)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Similarity, float32(0))
		assert.InDelta(t, max(0, 1-r.Distance), r.Similarity, 1e-6)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestSearch_DefaultK(t *testing.T) {
	s, _ := newTestSearcher(t, WithDefaultK(2))

	results, err := s.Search(context.Background(), "remote work", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(context.Background(), "remote work", 100)
	require.NoError(t, err)
	assert.Len(t, results, len(corpus))
}

func TestSearch_CleansQueryAndCachesEmbedding(t *testing.T) {
	s, embedder := newTestSearcher(t)
	ctx := context.Background()

	_, err := s.Search(ctx, "  boring   solutions ", 1)
	require.NoError(t, err)
	_, err = s.Search(ctx, "boring solutions", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestSearch_WithoutCache(t *testing.T) {
	s, embedder := newTestSearcher(t, WithCacheSize(0))
	ctx := context.Background()

	for range 2 {
		_, err := s.Search(ctx, "boring solutions", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, embedder.CallCount())
}

func TestSearch_InvalidQuery(t *testing.T) {
	s, embedder := newTestSearcher(t)

	for _, q := range []string{"", "   ", "a", strings.Repeat("x", MaxQueryLength+1)} {
		_, err := s.Search(context.Background(), q, 1)
		assert.ErrorIs(t, err, ErrInvalidQuery, "query %q", q)
	}
	assert.Zero(t, embedder.CallCount())
}

func TestSearch_EmbedderError(t *testing.T) {
	s, embedder := newTestSearcher(t)
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model offline")
	}

	_, err := s.Search(context.Background(), "values", 1)
	assert.EqualError(t, err, "model offline")
}

func TestSearch_EmptyStore(t *testing.T) {
	store, err := badger.NewMemoryStore(storage.DefaultCollection, storetest.Dimension)
	require.NoError(t, err)
	defer store.Close()

	s, err := NewSearcher(store, &mock.MockEmbedder{Dimension: storetest.Dimension})
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "anything at all", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchWithMonitor(t *testing.T) {
	s, _ := newTestSearcher(t)
	m := &recordingMonitor{}

	results, err := s.SearchWithMonitor(context.Background(), " remote  teams ", 2, m)
	require.NoError(t, err)

	assert.Equal(t, "remote teams", m.query)
	assert.Equal(t, storetest.Dimension, m.dimension)
	assert.Equal(t, len(results), m.hits)
	assert.True(t, m.finished)
}

func TestDocument(t *testing.T) {
	s, _ := newTestSearcher(t)

	chunks, err := s.Document(context.Background(), valuesURL)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestExpand(t *testing.T) {
	s, _ := newTestSearcher(t)
	ctx := context.Background()

	hit := func(url string, index int) *core.SearchResult {
		for _, c := range corpus {
			if c.URL == url && c.Index == index {
				return &core.SearchResult{Chunk: c, Score: 1}
			}
		}
		t.Fatalf("no chunk %s#%d", url, index)
		return nil
	}

	t.Run("replaces citation with full document in order", func(t *testing.T) {
		results := []*core.SearchResult{hit(valuesURL, 1), hit(remoteURL, 0)}
		chunks, err := s.Expand(ctx, results, []int{1})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for i, c := range chunks {
			assert.Equal(t, valuesURL, c.URL)
			assert.Equal(t, i, c.Index)
		}
	})

	t.Run("follows citation order and removes repeats", func(t *testing.T) {
		results := []*core.SearchResult{hit(valuesURL, 0), hit(remoteURL, 0), hit(valuesURL, 2)}
		chunks, err := s.Expand(ctx, results, []int{2, 1, 3})
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		assert.Equal(t, remoteURL, chunks[0].URL)
		assert.Equal(t, valuesURL, chunks[1].URL)
	})

	t.Run("ignores out of range indices", func(t *testing.T) {
		results := []*core.SearchResult{hit(directorURL, 0)}
		chunks, err := s.Expand(ctx, results, []int{0, 1, 7})
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
	})

	t.Run("falls back to the citation when nothing is stored", func(t *testing.T) {
		orphan := storetest.MakeChunk("https://handbook.gitlab.com/missing", 4, 9, "Orphaned content.")
		chunks, err := s.Expand(ctx, []*core.SearchResult{{Chunk: orphan}}, []int{1})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Same(t, orphan, chunks[0])
	})

	t.Run("errors", func(t *testing.T) {
		_, err := s.Expand(ctx, nil, []int{1})
		assert.ErrorIs(t, err, ErrNoResults)

		_, err = s.Expand(ctx, []*core.SearchResult{hit(valuesURL, 0)}, nil)
		assert.ErrorIs(t, err, ErrNoCitations)

		_, err = s.Expand(ctx, []*core.SearchResult{hit(valuesURL, 0)}, []int{5})
		assert.ErrorIs(t, err, ErrNoCitations)
	})
}
