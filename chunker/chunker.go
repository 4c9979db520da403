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

// Package chunker splits page text into overlapping, order-indexed chunks
// with deterministic identifiers.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docbot/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Config controls how text is split.
type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	Separators    []string
	MinPageChars  int // pages with less trimmed text produce no chunks
	MinChunkChars int // trimmed segments shorter than this are dropped
}

// DefaultConfig returns 800-character chunks with 200 characters of overlap.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:     800,
		ChunkOverlap:  200,
		Separators:    DefaultSeparators,
		MinPageChars:  50,
		MinChunkChars: 20,
	}
}

// Validate checks the size settings.
func (c *Config) Validate() error {
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, chunk size)", ErrInvalidConfig)
	}
	if len(c.Separators) == 0 {
		return fmt.Errorf("%w: at least one separator is required", ErrInvalidConfig)
	}
	if c.MinPageChars < 0 || c.MinChunkChars < 0 {
		return fmt.Errorf("%w: minimum lengths cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Chunker turns pages into chunks. It holds no mutable state and is safe for
// concurrent use.
type Chunker struct {
	config   *Config
	splitter textsplitter.RecursiveCharacter
}

// New creates a Chunker. A nil config uses DefaultConfig.
func New(config *Config) (*Chunker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithSeparators(config.Separators),
		),
	}, nil
}

// Chunk splits the page text. Index and Total refer to the splitter output
// before short segments are dropped, so the same text always yields the same
// ids, indices and totals.
func (c *Chunker) Chunk(page *core.Page) ([]*core.Chunk, error) {
	if err := core.ValidatePage(page); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(strings.TrimSpace(page.Text)) < c.config.MinPageChars {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(page.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", page.URL, err)
	}

	total := len(parts)
	chunks := make([]*core.Chunk, 0, total)
	for i, part := range parts {
		content := strings.TrimSpace(part)
		if utf8.RuneCountInString(content) < c.config.MinChunkChars {
			continue
		}
		chunks = append(chunks, &core.Chunk{
			ID:      core.ChunkID(page.URL, i),
			URL:     page.URL,
			Title:   page.Title,
			Content: content,
			Index:   i,
			Total:   total,
		})
	}
	return chunks, nil
}
