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

package reembed

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/storage"
)

// Config configures the reembedding process.
type Config struct {
	// BatchSize is the number of chunks embedded and written per call.
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks).
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding batch.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff.
	RetryDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      64,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Reembedder regenerates every stored vector with the current embedder.
// It is used after switching embedding models, which may change the
// vector dimension.
type Reembedder struct {
	store    storage.VectorStore
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a reembedder. A nil config selects DefaultConfig and
// a nil progress writer discards progress output.
func NewReembedder(store storage.VectorStore, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		store:    store,
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembed"),
	}
}

// Run snapshots every chunk, embeds the snapshot, then clears the collection
// and writes the chunks back with their new vectors. The collection is only
// cleared once every chunk has a vector, so an embedding failure leaves the
// store untouched. It returns the number of chunks rewritten.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	chunks, err := Snapshot(ctx, r.store)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot chunks: %w", err)
	}
	if len(chunks) == 0 {
		fmt.Fprintf(r.progress, "No chunks found in store (0 chunks)\n")
		return 0, nil
	}
	fmt.Fprintf(r.progress, "Reembedding %d chunks (batch size: %d)\n", len(chunks), r.config.BatchSize)

	vectors, err := r.embedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	if err := r.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear collection: %w", err)
	}
	r.logger.Info("collection cleared", "dimension", r.store.Dimension())

	tracker := NewProgressTracker(r.progress, "Writing", len(chunks), r.config.ReportInterval)
	tracker.Start()
	written := 0
	for start := 0; start < len(chunks); start += r.config.BatchSize {
		end := min(start+r.config.BatchSize, len(chunks))
		if err := r.store.Upsert(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return written, fmt.Errorf("failed to write chunks %d-%d of %d: %w", start, end, len(chunks), err)
		}
		written = end
		tracker.Add(end - start)
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Rewrote %d chunks in %v\n", written, elapsed.Round(time.Millisecond))
	return written, nil
}

func (r *Reembedder) embedAll(ctx context.Context, chunks []*core.Chunk) ([][]float32, error) {
	backoff := Backoff{Attempts: r.config.MaxRetries, BaseDelay: r.config.RetryDelay}
	tracker := NewProgressTracker(r.progress, "Embedding", len(chunks), r.config.ReportInterval)
	tracker.Start()

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += r.config.BatchSize {
		batch := chunks[start:min(start+r.config.BatchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		var embedded [][]float32
		err := backoff.Do(ctx, r.logger, func(ctx context.Context) error {
			var err error
			embedded, err = r.embedder.EmbedTexts(ctx, texts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", r.config.MaxRetries, err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(batch), len(embedded))
		}
		vectors = append(vectors, embedded...)
		tracker.Add(len(batch))
	}
	tracker.Finish()
	return vectors, nil
}

// Snapshot reads every chunk in the store, ordered by URL and index.
func Snapshot(ctx context.Context, store storage.VectorStore) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := store.Scan(ctx, func(c *core.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(chunks, func(a, b *core.Chunk) int {
		return cmp.Or(cmp.Compare(a.URL, b.URL), cmp.Compare(a.Index, b.Index))
	})
	return chunks, nil
}
