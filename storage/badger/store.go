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

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/storage"
)

// Store is a VectorStore kept in BadgerDB. Queries are exact: every vector
// in the collection is scored.
type Store struct {
	backend     *Backend
	ownsBackend bool
	collection  string
	probe       storage.DimensionProbe
	keepStale   bool
	logger      *slog.Logger

	mu        sync.RWMutex // guards dimension and serializes Clear against writers
	dimension int
	closed    atomic.Bool
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "badger-store")
		return nil
	}
}

// AllowDimensionChange opens an existing collection even when the probe
// reports a different dimension. The recorded dimension stays in effect until
// Clear re-probes.
func AllowDimensionChange() Option {
	return func(s *Store) error {
		s.keepStale = true
		return nil
	}
}

// Open opens (or creates) a store at path. The returned store owns the
// database and closes it on Close.
func Open(path, collection string, probe storage.DimensionProbe, opts ...Option) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := newStore(context.Background(), backend, collection, probe, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	store.ownsBackend = true
	return store, nil
}

// NewStore serves collection from an already open backend. The caller keeps
// ownership of the backend.
func NewStore(ctx context.Context, backend *Backend, collection string, probe storage.DimensionProbe, opts ...Option) (storage.VectorStore, error) {
	return newStore(ctx, backend, collection, probe, opts...)
}

func newStore(ctx context.Context, backend *Backend, collection string, probe storage.DimensionProbe, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, storage.ErrStorageClosed
	}
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: a dimension probe is required", storage.ErrInvalidDimension)
	}

	s := &Store{
		backend:    backend,
		collection: collection,
		probe:      probe,
		logger:     slog.Default().With("component", "badger-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("collection", collection)

	recorded, err := s.readDimension()
	if err != nil {
		return nil, err
	}
	probed, err := s.probeDimension(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case recorded == 0:
		if err := s.writeDimension(probed); err != nil {
			return nil, err
		}
		s.logger.Info("created collection", "dimension", probed)
		recorded = probed
	case recorded != probed:
		err := storage.CheckDimension(collection, recorded, probed)
		if !s.keepStale {
			return nil, err
		}
		s.logger.Warn("opening collection with stale dimension", "err", err)
	}
	s.dimension = recorded
	return s, nil
}

func (s *Store) readDimension() (int, error) {
	var dim int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDimensionKey(s.collection))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			dim, err = storage.UnmarshalDimension(val)
			return err
		})
	}, false)
	return dim, err
}

func (s *Store) probeDimension(ctx context.Context) (int, error) {
	dim, err := s.probe(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to probe dimension: %w", err)
	}
	if dim <= 0 {
		return 0, fmt.Errorf("%w: %d", storage.ErrInvalidDimension, dim)
	}
	return dim, nil
}

func (s *Store) writeDimension(dim int) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeDimensionKey(s.collection), storage.MarshalDimension(dim)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() || s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Dimension returns the collection's vector length.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Upsert writes all chunks in one transaction.
func (s *Store) Upsert(ctx context.Context, chunks []*core.Chunk, vectors [][]float32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prepared, replaced, err := storage.PrepareUpsert(chunks, vectors, s.dimension)
	if err != nil {
		return err
	}
	for _, id := range replaced {
		s.logger.Warn("replaced invalid chunk id", "id", id)
	}
	if len(prepared) == 0 {
		return nil
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		for i, chunk := range prepared {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.dropStaleIndex(tx, chunk); err != nil {
				return err
			}
			if err := tx.Set(makeChunkKey(s.collection, chunk.ID), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeVectorKey(s.collection, chunk.ID), storage.MarshalVector(vectors[i])); err != nil {
				return err
			}
			if err := tx.Set(makeURLKey(s.collection, chunk.URL, chunk.Index, chunk.ID), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// dropStaleIndex removes the URL index entry of a previous version of chunk
// stored under another URL or position.
func (s *Store) dropStaleIndex(tx *badger.Txn, chunk *core.Chunk) error {
	old, err := s.getChunk(tx, chunk.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if old.URL == chunk.URL && old.Index == chunk.Index {
		return nil
	}
	return tx.Delete(makeURLKey(s.collection, old.URL, old.Index, old.ID))
}

func (s *Store) getChunk(tx *badger.Txn, id string) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkKey(s.collection, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

// Query scores every stored vector against vector.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", storage.ErrInvalidQuery)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(vector), s.dimension)
	}

	results := []*core.SearchResult{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := collectionPrefix(vectorPrefix, s.collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var candidates []storage.Scored
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			id := string(bytes.TrimPrefix(item.Key(), prefix))
			err := item.Value(func(val []byte) error {
				stored, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				candidates = append(candidates, storage.Scored{ID: id, Score: storage.CosineSimilarity(vector, stored)})
				return nil
			})
			if err != nil {
				return err
			}
		}

		for _, c := range storage.TopK(candidates, k) {
			chunk, err := s.getChunk(tx, c.ID)
			if err != nil {
				return err
			}
			results = append(results, storage.NewSearchResult(chunk, c.Score))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchByURL scans the URL index, which is ordered by chunk index.
func (s *Store) FetchByURL(ctx context.Context, url string) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	chunks := []*core.Chunk{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialURLKey(s.collection, url)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := iter.Item().Key()[len(prefix):]
			if len(rest) < 4 {
				return fmt.Errorf("%w: url index key", storage.ErrTruncatedData)
			}
			chunk, err := s.getChunk(tx, string(rest[4:]))
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			chunks = append(chunks, chunk)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	storage.SortByIndex(chunks)
	return chunks, nil
}

// Clear probes the dimension, then drops every key of the collection and
// recreates it.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := s.probeDimension(ctx)
	if err != nil {
		return err
	}
	if err := s.backend.DropPrefix(collectionPrefixes(s.collection)...); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := s.writeDimension(dim); err != nil {
		return err
	}
	s.dimension = dim
	s.logger.Info("cleared collection", "dimension", dim)
	return nil
}

// Count returns the number of stored vectors.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = collectionPrefix(vectorPrefix, s.collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	}, false)
	return count, err
}

// Scan visits every chunk payload.
func (s *Store) Scan(ctx context.Context, fn func(*core.Chunk) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := collectionPrefix(chunkPrefix, s.collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			var chunk *core.Chunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Close releases the backend if the store opened it.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsBackend {
		return s.backend.Close()
	}
	return nil
}
