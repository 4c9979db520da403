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

package chunker

import (
	"strings"
	"testing"

	"github.com/poiesic/docbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vocabulary = []string{
	"handbook", "values", "results", "iteration", "transparency", "collaboration",
	"diversity", "efficiency", "merge", "request", "pipeline", "review",
}

// words returns roughly n characters of space-separated words.
func words(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(vocabulary[i%len(vocabulary)])
	}
	return b.String()[:n]
}

func page(text string) *core.Page {
	return &core.Page{URL: "https://handbook.gitlab.com/handbook/values/", Title: "Values", Text: text}
}

// overlap returns the length of the longest suffix of a that is a prefix of b.
func overlap(a, b string) int {
	for k := min(len(a), len(b)); k > 0; k-- {
		if strings.HasSuffix(a, b[:k]) {
			return k
		}
	}
	return 0
}

func TestChunk_LongText(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(page(words(5000)))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 6)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 800)
		assert.NoError(t, core.ValidateChunk(ch))
		assert.Equal(t, "Values", ch.Title)
		assert.Equal(t, chunks[0].Total, ch.Total)
		if i > 0 {
			assert.Greater(t, ch.Index, chunks[i-1].Index)
			assert.GreaterOrEqual(t, overlap(chunks[i-1].Content, ch.Content), 100,
				"chunks %d and %d should overlap", i-1, i)
		}
	}
}

func TestChunk_Idempotent(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	text := words(3000)
	first, err := c.Chunk(page(text))
	require.NoError(t, err)
	second, err := c.Chunk(page(text))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Index, second[i].Index)
		assert.Equal(t, first[i].Total, second[i].Total)
		assert.Equal(t, core.ChunkID(first[i].URL, first[i].Index), first[i].ID)
	}
}

func TestChunk_ShortPage(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	chunks, err := c.Chunk(page("Forty characters of text is not enough."))
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(page("   \n\n   "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_DropsShortSegmentsButKeepsTotal(t *testing.T) {
	c, err := New(&Config{
		ChunkSize:     30,
		ChunkOverlap:  0,
		Separators:    []string{"\n\n"},
		MinPageChars:  50,
		MinChunkChars: 20,
	})
	require.NoError(t, err)

	text := strings.Repeat("a", 28) + "\n\nb\n\n" + strings.Repeat("c", 28)
	chunks, err := c.Chunk(page(text))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 2, chunks[1].Index)
	assert.Equal(t, 3, chunks[0].Total)
	assert.Equal(t, 3, chunks[1].Total)
	assert.Equal(t, strings.Repeat("c", 28), chunks[1].Content)
}

func TestChunk_CountsCharactersNotBytes(t *testing.T) {
	t.Run("short page", func(t *testing.T) {
		c, err := New(nil)
		require.NoError(t, err)

		// 30 characters, 90 bytes
		text := strings.Repeat("文档", 15)
		chunks, err := c.Chunk(page(text))
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("short segment", func(t *testing.T) {
		c, err := New(&Config{
			ChunkSize:     30,
			ChunkOverlap:  0,
			Separators:    []string{"\n\n"},
			MinPageChars:  0,
			MinChunkChars: 20,
		})
		require.NoError(t, err)

		// the first segment is 10 characters but 20 bytes
		text := strings.Repeat("ü", 10) + "\n\n" + strings.Repeat("ö", 25)
		chunks, err := c.Chunk(page(text))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 1, chunks[0].Index)
		assert.Equal(t, 2, chunks[0].Total)
		assert.Equal(t, strings.Repeat("ö", 25), chunks[0].Content)
	})
}

func TestChunk_InvalidPage(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	_, err = c.Chunk(nil)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = c.Chunk(&core.Page{Text: words(200)})
	assert.ErrorIs(t, err, core.ErrEmptyURL)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, cfg := range map[string]*Config{
		"zero size":       {ChunkSize: 0, Separators: DefaultSeparators},
		"overlap too big": {ChunkSize: 100, ChunkOverlap: 100, Separators: DefaultSeparators},
		"no separators":   {ChunkSize: 100, ChunkOverlap: 10},
		"negative min":    {ChunkSize: 100, ChunkOverlap: 10, Separators: DefaultSeparators, MinChunkChars: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
