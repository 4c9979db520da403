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

package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchEmbedder splits embedding requests into batches of at most batchSize
// texts, preserving global order, and optionally normalizes every vector.
type BatchEmbedder struct {
	inner     Embedder
	batchSize int
	normalize bool
	logger    *slog.Logger
}

var _ Embedder = (*BatchEmbedder)(nil)

// NewBatchEmbedder wraps inner. A batchSize below 1 is treated as 1.
func NewBatchEmbedder(inner Embedder, batchSize int, normalize bool) *BatchEmbedder {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchEmbedder{
		inner:     inner,
		batchSize: batchSize,
		normalize: normalize,
		logger:    slog.Default().With("component", "batch-embedder"),
	}
}

// EmbedText embeds a single text.
func (b *BatchEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in order. It never calls the model for an empty input.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	b.logger.Debug("embedding texts", "texts", len(texts), "batch", b.batchSize)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := b.inner.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingCountMismatch, len(batch), len(vectors))
		}

		for _, v := range vectors {
			if len(v) == 0 {
				return nil, ErrEmptyEmbedding
			}
			if b.normalize {
				v = NormalizeVector(v)
			}
			out = append(out, v)
		}
	}
	return out, nil
}
