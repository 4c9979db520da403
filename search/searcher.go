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
	"time"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/metrics"
	"github.com/poiesic/docbot/storage"
)

const (
	// DefaultK is the number of results returned when none is requested.
	DefaultK = 5

	// MaxK caps the number of results per query.
	MaxK = 50

	// DefaultCacheSize is the number of query embeddings kept in memory.
	DefaultCacheSize = 256
)

// Searcher runs semantic search over the vector store.
type Searcher struct {
	store     storage.VectorStore
	embedder  ai.Embedder
	defaultK  int
	cacheSize int
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// WithDefaultK sets the result count used when a query asks for k <= 0.
func WithDefaultK(k int) Option {
	return func(s *Searcher) error {
		if k < 1 || k > MaxK {
			return fmt.Errorf("default k must be between 1 and %d, got %d", MaxK, k)
		}
		s.defaultK = k
		return nil
	}
}

// WithCacheSize sets how many query embeddings are cached. Zero disables
// the cache.
func WithCacheSize(size int) Option {
	return func(s *Searcher) error {
		if size < 0 {
			size = 0
		}
		s.cacheSize = size
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.VectorStore, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:     store,
		defaultK:  DefaultK,
		cacheSize: DefaultCacheSize,
		logger:    slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.embedder = embedder
	if s.cacheSize > 0 {
		cached, err := ai.NewCachedEmbedder(embedder, s.cacheSize)
		if err != nil {
			return nil, err
		}
		s.embedder = cached
	}
	return s, nil
}

// Store returns the store the searcher reads from.
func (s *Searcher) Store() storage.VectorStore {
	return s.store
}

// Search returns up to k chunks most similar to query, ranked from 1.
// k <= 0 selects the default.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, k, nil)
}

// SearchWithMonitor is Search with callbacks at each stage.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, k int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	cleaned, err := CleanQuery(query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if k <= 0 {
		k = s.defaultK
	}
	k = min(k, MaxK)
	monitor.Start(cleaned)

	embedding, err := s.embedder.EmbedText(ctx, cleaned)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(embedding))

	results, err := s.store.Query(ctx, embedding, k)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	for i, r := range results {
		r.Similarity = max(0, 1-r.Distance)
		r.Rank = i + 1
		monitor.Hit(r)
	}
	monitor.Finish(results)

	if len(results) == 0 {
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.SearchesTotal.WithLabelValues("ok").Inc()
	}
	s.logger.Info("search completed", "query_len", len(cleaned), "k", k, "results", len(results))
	return results, nil
}

// Document returns every stored chunk of url in source order.
func (s *Searcher) Document(ctx context.Context, url string) ([]*core.Chunk, error) {
	return s.store.FetchByURL(ctx, url)
}
