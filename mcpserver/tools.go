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
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/poiesic/docbot/search"
)

func searchDocsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_docs",
		Description: "Semantic search over the crawled documentation. Returns the most similar chunks with their source URL and title.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural language search query",
				},
				"k": map[string]any{
					"type":        "integer",
					"description": "Number of results to return",
					"default":     search.DefaultK,
					"minimum":     1,
					"maximum":     search.MaxK,
				},
			},
			Required: []string{"query"},
		},
	}
}

func getDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_document",
		Description: "Returns every stored chunk of a document in source order.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Document URL as returned by search_docs",
				},
			},
			Required: []string{"url"},
		},
	}
}

func (s *Server) handleSearchDocs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newToolError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newToolError(ErrorCodeEmptyQuery, "query parameter is required", map[string]any{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	k := getIntDefault(args, "k", 0)

	results, err := s.searcher.Search(ctx, query, k)
	if errors.Is(err, search.ErrInvalidQuery) {
		return nil, newToolError(ErrorCodeInvalidParams, "invalid query", map[string]any{
			"param":  "query",
			"reason": err.Error(),
		})
	}
	if err != nil {
		s.logger.Error("search failed", "err", err)
		return nil, newToolError(ErrorCodeInternalError, "search failed", map[string]any{"error": err.Error()})
	}

	hits := make([]map[string]any, 0, len(results))
	for _, r := range results {
		hits = append(hits, map[string]any{
			"rank":       r.Rank,
			"similarity": r.Similarity,
			"id":         r.Chunk.ID,
			"content":    r.Chunk.Content,
			"metadata":   r.Chunk.Metadata(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})), nil
}

func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return nil, newToolError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	url := getStringDefault(args, "url", "")
	if url == "" {
		return nil, newToolError(ErrorCodeInvalidParams, "url parameter is required", map[string]any{
			"param":  "url",
			"reason": "missing or empty",
		})
	}

	chunks, err := s.searcher.Document(ctx, url)
	if err != nil {
		s.logger.Error("document fetch failed", "url", url, "err", err)
		return nil, newToolError(ErrorCodeInternalError, "document fetch failed", map[string]any{"error": err.Error()})
	}
	if len(chunks) == 0 {
		return nil, newToolError(ErrorCodeNotFound, fmt.Sprintf("no document stored for %s", url), nil)
	}

	parts := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, map[string]any{
			"id":       c.ID,
			"content":  c.Content,
			"metadata": c.Metadata(),
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"url":    url,
		"title":  chunks[0].Title,
		"chunks": parts,
	})), nil
}

func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

// getIntDefault accepts the float64 that JSON decoding produces as well as int.
func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

func getStringDefault(args map[string]any, key string, defaultValue string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return defaultValue
}
