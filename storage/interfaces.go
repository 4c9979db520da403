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

package storage

import (
	"context"
	"fmt"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/core"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "gitlab_docs"

// VectorStore holds chunks and their embeddings in one named collection.
type VectorStore interface {
	// Upsert writes chunks[i] with vectors[i]. Writing an existing id
	// replaces its payload and vector. Every vector must match Dimension.
	Upsert(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error

	// Query returns up to k chunks ordered by descending cosine similarity.
	Query(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error)

	// FetchByURL returns every chunk of url sorted by Index.
	FetchByURL(ctx context.Context, url string) ([]*core.Chunk, error)

	// Clear drops the collection and recreates it with a freshly probed dimension.
	Clear(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Scan calls fn for each stored chunk in unspecified order. fn must not
	// write to the store. A non-nil error from fn stops the scan and is returned.
	Scan(ctx context.Context, fn func(*core.Chunk) error) error

	// Dimension returns the collection's vector length.
	Dimension() int

	// Close closes the storage backend and releases resources.
	Close() error
}

// ValidateCollection checks that name is non-empty and made of ASCII
// letters, digits, '_' and '-'.
func ValidateCollection(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidCollection)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
		}
	}
	return nil
}

// DimensionProbe reports the vector length a collection should be created with.
type DimensionProbe func(ctx context.Context) (int, error)

// ProbeText is embedded to discover the model's dimension.
const ProbeText = "dimension probe"

// EmbedderProbe derives the dimension by embedding ProbeText, so a collection
// always matches the model currently configured.
func EmbedderProbe(embedder ai.Embedder) DimensionProbe {
	return func(ctx context.Context) (int, error) {
		vector, err := embedder.EmbedText(ctx, ProbeText)
		if err != nil {
			return 0, err
		}
		return len(vector), nil
	}
}

// CheckDimension compares the dimension recorded for an existing collection
// with the one the probe reports now.
func CheckDimension(collection string, recorded, probed int) error {
	if recorded == probed {
		return nil
	}
	return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, embedder produces %d (re-embed or clear the collection)",
		ErrDimensionMismatch, collection, recorded, probed)
}

// FixedDimension always reports n.
func FixedDimension(n int) DimensionProbe {
	return func(context.Context) (int, error) {
		return n, nil
	}
}
