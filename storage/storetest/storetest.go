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

// Package storetest holds behavioural tests shared by every VectorStore
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/poiesic/docbot/ai/mock"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Dimension is the vector length used by the suite.
const Dimension = 32

// Factory opens a fresh, empty store for collection whose dimension comes from probe.
type Factory func(t *testing.T, collection string, probe storage.DimensionProbe) storage.VectorStore

// MakeChunk builds a valid chunk of url at index.
func MakeChunk(url string, index, total int, content string) *core.Chunk {
	return &core.Chunk{
		ID:      core.ChunkID(url, index),
		URL:     url,
		Title:   "Title of " + url,
		Content: content,
		Index:   index,
		Total:   total,
	}
}

// Vectors embeds the chunk contents with the deterministic mock embedder.
func Vectors(chunks []*core.Chunk) [][]float32 {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = mock.Vector(c.Content, Dimension)
	}
	return out
}

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	ctx := context.Background()
	fixed := storage.FixedDimension(Dimension)

	t.Run("EmptyStore", func(t *testing.T) {
		s := open(t, "empty", fixed)
		assert.Equal(t, Dimension, s.Dimension())

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		results, err := s.Query(ctx, mock.Vector("anything", Dimension), 5)
		require.NoError(t, err)
		assert.Empty(t, results)

		chunks, err := s.FetchByURL(ctx, "https://example.com/")
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("FetchByURLSortsByIndex", func(t *testing.T) {
		s := open(t, "order", fixed)
		url := "https://example.com/page"
		chunks := []*core.Chunk{
			MakeChunk(url, 3, 5, "fourth segment of the page"),
			MakeChunk(url, 0, 5, "first segment of the page"),
			MakeChunk("https://example.com/other", 0, 1, "another page entirely"),
			MakeChunk(url, 2, 5, "third segment of the page"),
		}
		require.NoError(t, s.Upsert(ctx, chunks, Vectors(chunks)))

		got, err := s.FetchByURL(ctx, url)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int{0, 2, 3}, []int{got[0].Index, got[1].Index, got[2].Index})
		assert.Equal(t, "first segment of the page", got[0].Content)
		assert.Equal(t, 5, got[0].Total)
		assert.Equal(t, "Title of "+url, got[0].Title)
		assert.Equal(t, core.ChunkID(url, 0), got[0].ID)
	})

	t.Run("QueryReturnsOwnChunkFirst", func(t *testing.T) {
		s := open(t, "roundtrip", fixed)
		var chunks []*core.Chunk
		for i, text := range []string{
			"engineering values and iteration",
			"quarterly product direction for planning",
			"remote work onboarding checklist",
			"security incident response runbook",
		} {
			chunks = append(chunks, MakeChunk(fmt.Sprintf("https://example.com/%d", i), 0, 1, text))
		}
		vectors := Vectors(chunks)
		require.NoError(t, s.Upsert(ctx, chunks, vectors))

		for i, chunk := range chunks {
			results, err := s.Query(ctx, vectors[i], 3)
			require.NoError(t, err)
			require.Len(t, results, 3)
			assert.Equal(t, chunk.ID, results[0].Chunk.ID)
			assert.InDelta(t, 1.0, results[0].Score, 1e-4)
			assert.InDelta(t, 0.0, results[0].Distance, 1e-4)
			for j := 1; j < len(results); j++ {
				assert.GreaterOrEqual(t, results[j-1].Score, results[j].Score)
			}
		}
	})

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s := open(t, "idempotent", fixed)
		url := "https://example.com/"
		first := []*core.Chunk{MakeChunk(url, 0, 1, "original content")}
		require.NoError(t, s.Upsert(ctx, first, Vectors(first)))

		second := []*core.Chunk{MakeChunk(url, 0, 1, "replacement content")}
		require.NoError(t, s.Upsert(ctx, second, Vectors(second)))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.FetchByURL(ctx, url)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "replacement content", got[0].Content)
	})

	t.Run("MovedChunkLeavesNoStaleIndex", func(t *testing.T) {
		s := open(t, "moved", fixed)
		chunk := MakeChunk("https://example.com/a", 0, 1, "content that moves")
		require.NoError(t, s.Upsert(ctx, []*core.Chunk{chunk}, Vectors([]*core.Chunk{chunk})))

		moved := *chunk
		moved.URL = "https://example.com/b"
		require.NoError(t, s.Upsert(ctx, []*core.Chunk{&moved}, Vectors([]*core.Chunk{&moved})))

		got, err := s.FetchByURL(ctx, "https://example.com/a")
		require.NoError(t, err)
		assert.Empty(t, got)
		got, err = s.FetchByURL(ctx, "https://example.com/b")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("InvalidIDsAreReplaced", func(t *testing.T) {
		s := open(t, "ids", fixed)
		chunk := MakeChunk("https://example.com/", 0, 1, "content with a custom id")
		chunk.ID = "custom-id"
		require.NoError(t, s.Upsert(ctx, []*core.Chunk{chunk}, Vectors([]*core.Chunk{chunk})))
		require.NoError(t, s.Upsert(ctx, []*core.Chunk{chunk}, Vectors([]*core.Chunk{chunk})))

		got, err := s.FetchByURL(ctx, chunk.URL)
		require.NoError(t, err)
		require.Len(t, got, 1, "the same malformed id maps to the same key")
		assert.True(t, core.IsValidID(got[0].ID))
		assert.Equal(t, "custom-id", chunk.ID)
	})

	t.Run("RejectsBadInput", func(t *testing.T) {
		s := open(t, "bad", fixed)
		chunk := MakeChunk("https://example.com/", 0, 1, "content")

		err := s.Upsert(ctx, []*core.Chunk{chunk}, [][]float32{make([]float32, Dimension+1)})
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

		err = s.Upsert(ctx, []*core.Chunk{chunk}, nil)
		assert.ErrorIs(t, err, storage.ErrLengthMismatch)

		_, err = s.Query(ctx, make([]float32, 3), 5)
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

		_, err = s.Query(ctx, mock.Vector("q", Dimension), 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		require.NoError(t, s.Upsert(ctx, nil, nil))
	})

	t.Run("ClearEmptiesAndReprobes", func(t *testing.T) {
		var calls atomic.Int32
		probe := func(context.Context) (int, error) {
			if calls.Add(1) == 1 {
				return Dimension, nil
			}
			return 2 * Dimension, nil
		}
		s := open(t, "clear", probe)
		chunks := []*core.Chunk{MakeChunk("https://example.com/", 0, 1, "soon to be gone")}
		require.NoError(t, s.Upsert(ctx, chunks, Vectors(chunks)))

		require.NoError(t, s.Clear(ctx))
		assert.Equal(t, 2*Dimension, s.Dimension())

		results, err := s.Query(ctx, make([]float32, 2*Dimension), 5)
		require.NoError(t, err)
		assert.Empty(t, results)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := s.FetchByURL(ctx, "https://example.com/")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ScanVisitsEveryChunk", func(t *testing.T) {
		s := open(t, "scan", fixed)
		var chunks []*core.Chunk
		for i := 0; i < 5; i++ {
			chunks = append(chunks, MakeChunk("https://example.com/", i, 5, fmt.Sprintf("segment number %d", i)))
		}
		require.NoError(t, s.Upsert(ctx, chunks, Vectors(chunks)))

		seen := make(map[string]bool)
		require.NoError(t, s.Scan(ctx, func(c *core.Chunk) error {
			seen[c.ID] = true
			return nil
		}))
		assert.Len(t, seen, 5)

		stop := fmt.Errorf("stop")
		visited := 0
		err := s.Scan(ctx, func(*core.Chunk) error {
			visited++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, visited)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		s := open(t, "closed", fixed)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close(), "closing twice is fine")

		_, err := s.Query(ctx, mock.Vector("q", Dimension), 1)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
		assert.ErrorIs(t, s.Clear(ctx), storage.ErrStorageClosed)
	})
}

// Reopener opens the same persistent collection on every call. allowChange
// asks the backend to accept a collection whose recorded dimension differs
// from probe.
type Reopener func(probe storage.DimensionProbe, allowChange bool) (storage.VectorStore, error)

// RunReopen checks that every open compares the embedder's dimension with the
// one recorded for the collection.
func RunReopen(t *testing.T, open Reopener) {
	ctx := context.Background()

	s, err := open(storage.FixedDimension(Dimension), false)
	require.NoError(t, err)
	chunks := []*core.Chunk{MakeChunk("https://example.com/", 0, 1, "persisted content")}
	require.NoError(t, s.Upsert(ctx, chunks, Vectors(chunks)))
	require.NoError(t, s.Close())

	t.Run("SameDimension", func(t *testing.T) {
		var calls atomic.Int32
		probe := func(context.Context) (int, error) {
			calls.Add(1)
			return Dimension, nil
		}
		s, err := open(probe, false)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, int32(1), calls.Load(), "every open asks the embedder")
		assert.Equal(t, Dimension, s.Dimension())
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("DifferentDimension", func(t *testing.T) {
		_, err := open(storage.FixedDimension(Dimension/2), false)
		require.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})

	t.Run("AllowDimensionChange", func(t *testing.T) {
		s, err := open(storage.FixedDimension(Dimension/2), true)
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, Dimension, s.Dimension(), "the recorded dimension stays until cleared")
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, s.Clear(ctx))
		assert.Equal(t, Dimension/2, s.Dimension())
	})

	t.Run("AfterClear", func(t *testing.T) {
		_, err := open(storage.FixedDimension(Dimension), false)
		require.ErrorIs(t, err, storage.ErrDimensionMismatch)

		s, err := open(storage.FixedDimension(Dimension/2), false)
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, Dimension/2, s.Dimension())
	})
}
