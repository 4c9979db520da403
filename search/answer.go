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
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/core"
)

const (
	// DefaultMaxCitations is how many search results are expanded into context.
	DefaultMaxCitations = 2

	// DefaultMaxHistory is how many trailing chat messages go into the prompt.
	DefaultMaxHistory = 10
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks a question, optionally with earlier turns.
type ChatRequest struct {
	Query   string    `json:"query"`
	K       int       `json:"k,omitempty"`
	History []Message `json:"chat_history,omitempty"`
}

// Citation is a chunk that was put into the answer's context.
type Citation struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Snippet string `json:"snippet"`
}

// ChatResponse is a generated answer with the context it was built from.
type ChatResponse struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Query     string     `json:"rewritten_query"`
}

// Selector picks which search results are relevant to a query. It returns
// 1-based indices into results.
type Selector interface {
	Select(ctx context.Context, query string, results []*core.SearchResult) ([]int, error)
}

// TopSelector selects the first N results.
type TopSelector struct {
	N int
}

// Select implements Selector.
func (t TopSelector) Select(_ context.Context, _ string, results []*core.SearchResult) ([]int, error) {
	n := min(max(t.N, 1), len(results))
	if n == 0 {
		return nil, ErrNoCitations
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out, nil
}

// GeneratorSelector asks the answer generator which results are relevant and
// parses the citation numbers out of its reply.
type GeneratorSelector struct {
	Generator ai.AnswerGenerator
	Max       int
}

// Select implements Selector.
func (g GeneratorSelector) Select(ctx context.Context, query string, results []*core.SearchResult) ([]int, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nWhich of the numbered citations below help answer the question? ", query)
	b.WriteString("Reply with the citation numbers only, most relevant first.\n")
	for i, r := range results {
		fmt.Fprintf(&b, "\n-----\nCitation [%d] | Title: %s\nContent: %s\n", i+1, r.Chunk.Title, r.Chunk.Content)
	}

	reply, err := g.Generator.Generate(ctx, b.String())
	if err != nil {
		return nil, fmt.Errorf("citation selection: %w", err)
	}
	limit := g.Max
	if limit <= 0 {
		limit = DefaultMaxCitations
	}
	indices := ParseIndices(reply, len(results), limit)
	if len(indices) == 0 {
		return nil, ErrNoCitations
	}
	return indices, nil
}

// Answerer answers questions from retrieved documentation.
type Answerer struct {
	searcher   *Searcher
	generator  ai.AnswerGenerator
	selector   Selector
	maxHistory int
	logger     *slog.Logger
}

// AnswerOption configures an Answerer.
type AnswerOption func(*Answerer) error

// WithSelector replaces the default TopSelector.
func WithSelector(selector Selector) AnswerOption {
	return func(a *Answerer) error {
		if selector != nil {
			a.selector = selector
		}
		return nil
	}
}

// WithMaxHistory sets how many trailing chat messages are kept.
func WithMaxHistory(n int) AnswerOption {
	return func(a *Answerer) error {
		a.maxHistory = max(n, 0)
		return nil
	}
}

// WithAnswerLogger sets a custom logger.
func WithAnswerLogger(logger *slog.Logger) AnswerOption {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "chat")
		return nil
	}
}

// NewAnswerer creates an answerer.
func NewAnswerer(searcher *Searcher, generator ai.AnswerGenerator, opts ...AnswerOption) (*Answerer, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	a := &Answerer{
		searcher:   searcher,
		generator:  generator,
		selector:   TopSelector{N: DefaultMaxCitations},
		maxHistory: DefaultMaxHistory,
		logger:     slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Chat searches for the query, expands the selected results into their full
// documents, and asks the generator for an answer.
func (a *Answerer) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	query, err := CleanQuery(req.Query)
	if err != nil {
		return nil, err
	}

	results, err := a.searcher.Search(ctx, query, req.K)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}

	indices, err := a.selector.Select(ctx, query, results)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("selected citations", "indices", indices)

	chunks, err := a.searcher.Expand(ctx, results, indices)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(query, BuildContext(chunks), a.history(req.History))
	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		a.logger.Error("answer generation failed", "err", err)
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	citations := make([]Citation, len(chunks))
	for i, c := range chunks {
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		citations[i] = Citation{
			ID:      c.ID,
			URL:     c.URL,
			Title:   title,
			Index:   i + 1,
			Total:   len(chunks),
			Snippet: c.Content,
		}
	}
	a.logger.Info("chat completed", "citations", len(citations), "answer_len", len(answer))
	return &ChatResponse{Answer: answer, Citations: citations, Query: query}, nil
}

func (a *Answerer) history(messages []Message) string {
	if len(messages) > a.maxHistory {
		messages = messages[len(messages)-a.maxHistory:]
	}
	var lines []string
	for _, m := range messages {
		switch m.Role {
		case "user":
			lines = append(lines, "User: "+m.Content)
		case "assistant":
			lines = append(lines, "Assistant: "+m.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// BuildContext renders chunks as numbered citations.
func BuildContext(chunks []*core.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		header := fmt.Sprintf("Citation [%d] | Titled: %s", i+1, c.Title)
		if c.URL != "" {
			header += fmt.Sprintf(" | Url: (%s)", c.URL)
		}
		parts[i] = " -----\n" + header + "\n" + c.Content
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt assembles the generation prompt.
func BuildPrompt(query, docs, history string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the documentation excerpts below. ")
	b.WriteString("Cite excerpts by their citation number.\n\n")
	b.WriteString("# Documentation\n")
	b.WriteString(docs)
	if history != "" {
		b.WriteString("\n\n# Previous Conversation:\n")
		b.WriteString(history)
	}
	b.WriteString("\n\n# Question\n")
	b.WriteString(query)
	b.WriteString("\n")
	return b.String()
}
