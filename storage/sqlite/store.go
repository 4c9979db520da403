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

// Package sqlite stores chunks and vectors in a SQLite database. Similarity
// is computed in Go over the collection's vectors.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/storage"
)

// Store is a VectorStore backed by one SQLite database file.
type Store struct {
	db         *sql.DB
	collection string
	probe      storage.DimensionProbe
	keepStale  bool
	logger     *slog.Logger

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
		s.logger = logger.With("component", "sqlite-store")
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

// openDatabase opens a SQLite database with WAL and a single connection.
func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Open opens (or creates) the database at path and serves collection from it.
func Open(path, collection string, probe storage.DimensionProbe, opts ...Option) (storage.VectorStore, error) {
	if err := storage.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, fmt.Errorf("%w: a dimension probe is required", storage.ErrInvalidDimension)
	}

	db, err := openDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{
		db:         db,
		collection: collection,
		probe:      probe,
		logger:     slog.Default().With("component", "sqlite-store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s.logger = s.logger.With("collection", collection)

	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	var recorded int
	err := s.db.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", s.collection).Scan(&recorded)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	exists := err == nil

	probed, err := s.probeDimension(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := s.db.ExecContext(ctx, upsertCollection, s.collection, probed); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		s.dimension = probed
		s.logger.Info("created collection", "dimension", probed)
		return nil
	}
	if err := storage.CheckDimension(s.collection, recorded, probed); err != nil {
		if !s.keepStale {
			return err
		}
		s.logger.Warn("opening collection with stale dimension", "err", err)
	}
	s.dimension = recorded
	return nil
}

const upsertCollection = `INSERT INTO collections (name, dimension) VALUES (?, ?)
ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension`

const upsertChunk = `INSERT INTO chunks (collection, id, url, title, content, chunk_index, total, vector)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(collection, id) DO UPDATE SET
    url = excluded.url,
    title = excluded.title,
    content = excluded.content,
    chunk_index = excluded.chunk_index,
    total = excluded.total,
    vector = excluded.vector`

const selectChunk = `SELECT id, url, title, content, chunk_index, total FROM chunks`

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

func (s *Store) checkOpen() error {
	if s.closed.Load() {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertChunk)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for i, c := range prepared {
		if _, err := stmt.ExecContext(ctx, s.collection, c.ID, c.URL, c.Title, c.Content, c.Index, c.Total,
			storage.MarshalVector(vectors[i])); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Query scores every vector of the collection against vector.
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

	rows, err := s.db.QueryContext(ctx, "SELECT id, vector FROM chunks WHERE collection = ?", s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	var candidates []storage.Scored
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stored, err := storage.UnmarshalVector(blob)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		candidates = append(candidates, storage.Scored{ID: id, Score: storage.CosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	results := []*core.SearchResult{}
	for _, c := range storage.TopK(candidates, k) {
		row := s.db.QueryRowContext(ctx, selectChunk+" WHERE collection = ? AND id = ?", s.collection, c.ID)
		chunk, err := scanChunk(row)
		if err != nil {
			return nil, err
		}
		results = append(results, storage.NewSearchResult(chunk, c.Score))
	}
	return results, nil
}

// FetchByURL returns the chunks of url ordered by index.
func (s *Store) FetchByURL(ctx context.Context, url string) ([]*core.Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		selectChunk+" WHERE collection = ? AND url = ? ORDER BY chunk_index", s.collection, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := []*core.Chunk{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// Clear probes the dimension, then deletes the collection's chunks and
// records the new dimension in one transaction.
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertCollection, s.collection, dim); err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dimension = dim
	s.logger.Info("cleared collection", "dimension", dim)
	return nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE collection = ?", s.collection).Scan(&n)
	return n, err
}

// Scan visits every chunk. The store has a single connection, so fn must
// not call back into it.
func (s *Store) Scan(ctx context.Context, fn func(*core.Chunk) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, selectChunk+" WHERE collection = ?", s.collection)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*core.Chunk, error) {
	var c core.Chunk
	if err := row.Scan(&c.ID, &c.URL, &c.Title, &c.Content, &c.Index, &c.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
