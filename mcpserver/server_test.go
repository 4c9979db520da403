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

package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/poiesic/docbot/ai/mock"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/search"
	"github.com/poiesic/docbot/storage"
	"github.com/poiesic/docbot/storage/badger"
	"github.com/poiesic/docbot/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const valuesURL = "https://handbook.gitlab.com/handbook/values/"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := badger.NewMemoryStore(storage.DefaultCollection, storetest.Dimension)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	corpus := []*core.Chunk{
		storetest.MakeChunk(valuesURL, 0, 2, "Collaboration means helping others when they ask."),
		storetest.MakeChunk(valuesURL, 1, 2, "Results matter more than hours worked."),
		storetest.MakeChunk("https://about.gitlab.com/direction/", 0, 1, "The direction page lists product investment themes."),
	}
	require.NoError(t, store.Upsert(context.Background(), corpus, storetest.Vectors(corpus)))

	searcher, err := search.NewSearcher(store, &mock.MockEmbedder{Dimension: storetest.Dimension})
	require.NoError(t, err)
	s, err := NewServer(searcher)
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestNewServer_RequiresSearcher(t *testing.T) {
	_, err := NewServer(nil)
	assert.ErrorIs(t, err, ErrSearcherRequired)
}

func TestSearchDocs(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSearchDocs(context.Background(), callRequest("search_docs", map[string]any{
		"query": "Results matter more than hours worked.",
		"k":     float64(2),
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.EqualValues(t, 2, out["count"])
	hits := out["results"].([]any)
	require.Len(t, hits, 2)
	top := hits[0].(map[string]any)
	assert.Equal(t, "Results matter more than hours worked.", top["content"])
	assert.EqualValues(t, 1, top["rank"])
	metadata := top["metadata"].(map[string]any)
	assert.Equal(t, valuesURL, metadata["url"])
	assert.EqualValues(t, 1, metadata["index"])
}

func TestSearchDocs_InvalidArguments(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args any
		code int
	}{
		{"not a map", "query", ErrorCodeInvalidParams},
		{"missing query", map[string]any{"k": float64(3)}, ErrorCodeEmptyQuery},
		{"too short", map[string]any{"query": "x"}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "search_docs", Arguments: tt.args}}
			_, err := s.handleSearchDocs(context.Background(), req)
			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.code, toolErr.Code)
		})
	}
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleGetDocument(context.Background(), callRequest("get_document", map[string]any{
		"url": valuesURL,
	}))
	require.NoError(t, err)

	out := resultJSON(t, result)
	assert.Equal(t, valuesURL, out["url"])
	assert.Equal(t, "Title of "+valuesURL, out["title"])
	chunks := out["chunks"].([]any)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Collaboration means helping others when they ask.", chunks[0].(map[string]any)["content"])
	assert.Equal(t, "Results matter more than hours worked.", chunks[1].(map[string]any)["content"])
}

func TestGetDocument_Errors(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleGetDocument(context.Background(), callRequest("get_document", map[string]any{}))
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorCodeInvalidParams, toolErr.Code)

	_, err = s.handleGetDocument(context.Background(), callRequest("get_document", map[string]any{
		"url": "https://handbook.gitlab.com/missing/",
	}))
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, ErrorCodeNotFound, toolErr.Code)
}

func TestGetIntDefault(t *testing.T) {
	args := map[string]any{"f": float64(7), "i": 3, "s": "9"}
	assert.Equal(t, 7, getIntDefault(args, "f", 1))
	assert.Equal(t, 3, getIntDefault(args, "i", 1))
	assert.Equal(t, 1, getIntDefault(args, "s", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
}
