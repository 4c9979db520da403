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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/chunker"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/ledger"
	"github.com/poiesic/docbot/metrics"
	"github.com/poiesic/docbot/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of buffered chunks that triggers a flush.
	DefaultBatchSize = 10

	// DefaultChannelSize is the page channel capacity.
	DefaultChannelSize = 16
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PageSource produces pages for one run. It must close out when it returns.
// crawler.Crawler implements it.
type PageSource interface {
	Crawl(ctx context.Context, visited map[string]struct{}, out chan<- *core.Page) (int, error)
}

// Pipeline drains a crawl, chunks each new page, and embeds and stores the
// chunks in batches.
type Pipeline struct {
	source      PageSource
	chunker     *chunker.Chunker
	embedder    ai.Embedder
	store       storage.VectorStore
	ledger      ledger.Ledger
	batchSize   int
	channelSize int
	logger      *slog.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchSize sets the flush threshold.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithChannelSize sets the capacity of the page channel between the crawler
// and the consumer. Default is DefaultChannelSize.
func WithChannelSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 0 {
			size = 0
		}
		p.channelSize = size
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source PageSource,
	embedder ai.Embedder,
	store storage.VectorStore,
	visited ledger.Ledger,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrCrawlerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if visited == nil {
		return nil, ErrLedgerRequired
	}

	p := &Pipeline{
		source:      source,
		embedder:    embedder,
		store:       store,
		ledger:      visited,
		batchSize:   DefaultBatchSize,
		channelSize: DefaultChannelSize,
		logger:      slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.chunker == nil {
		c, err := chunker.New(nil)
		if err != nil {
			return nil, err
		}
		p.chunker = c
	}
	return p, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run performs one ingestion: it crawls, chunks pages not in the ledger,
// flushes chunks in batches, and saves the ledger. A URL enters the ledger
// only after all of its chunks were stored, and the ledger is saved once
// whether or not the run succeeds.
func (p *Pipeline) Run(ctx context.Context) (*core.IngestResult, error) {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	p.state = StateRunning
	p.mu.Unlock()

	result, err := p.run(ctx)
	if err != nil {
		p.setState(StateFailed)
		p.logger.Error("ingestion failed", "err", err)
		return result, err
	}
	p.setState(StateCompleted)
	p.logger.Info("ingestion completed", "pages", result.Pages, "chunks", result.Chunks)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*core.IngestResult, error) {
	if err := p.ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerFailed, err)
	}
	visited := p.ledger.Members()
	p.logger.Info("starting ingestion", "known_urls", len(visited))

	pages := make(chan *core.Page, p.channelSize)
	result := &core.IngestResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := p.source.Crawl(gctx, visited, pages)
		result.Pages = n
		return err
	})
	// The consumer drains pages crawled before a source failure.
	g.Go(func() error {
		n, err := p.consume(ctx, pages)
		result.Chunks = n
		return err
	})
	runErr := g.Wait()

	if err := p.ledger.Save(context.WithoutCancel(ctx)); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("%w: %w", ErrLedgerFailed, err))
	}
	return result, runErr
}

// consume is the single consumer of the page channel. It returns the number
// of chunks stored.
func (p *Pipeline) consume(ctx context.Context, pages <-chan *core.Page) (int, error) {
	var (
		buffer  []*core.Chunk
		urls    []string
		pending = make(map[string]struct{})
		stored  int
	)

	flush := func(ctx context.Context) error {
		if len(buffer) > 0 {
			if err := p.flush(ctx, buffer); err != nil {
				return err
			}
			stored += len(buffer)
		}
		for _, u := range urls {
			p.ledger.Add(u)
			delete(pending, u)
		}
		buffer, urls = buffer[:0], urls[:0]
		return nil
	}

	for page := range pages {
		if _, ok := pending[page.URL]; ok || p.ledger.Contains(page.URL) {
			p.logger.Debug("skipping known page", "url", page.URL)
			continue
		}

		chunks, err := p.chunker.Chunk(page)
		if err != nil {
			p.logger.Warn("failed to chunk page", "url", page.URL, "err", err)
			continue
		}
		if len(chunks) == 0 {
			p.ledger.Add(page.URL)
			continue
		}

		buffer = append(buffer, chunks...)
		urls = append(urls, page.URL)
		pending[page.URL] = struct{}{}

		if len(buffer) >= p.batchSize && ctx.Err() == nil {
			if err := flush(ctx); err != nil {
				return stored, err
			}
		}
	}

	// Pages consumed before a cancellation are still stored.
	if err := flush(context.WithoutCancel(ctx)); err != nil {
		return stored, err
	}
	return stored, nil
}

// flush embeds chunks in one call and upserts them.
func (p *Pipeline) flush(ctx context.Context, chunks []*core.Chunk) error {
	start := time.Now()
	defer func() {
		metrics.FlushDuration.Observe(time.Since(start).Seconds())
	}()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		metrics.FlushesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		metrics.FlushesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	metrics.FlushesTotal.WithLabelValues("ok").Inc()
	metrics.ChunksIngested.Add(float64(len(chunks)))
	p.logger.Debug("flushed chunks", "chunks", len(chunks), "took", time.Since(start))
	return nil
}
