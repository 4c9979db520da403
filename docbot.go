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

// Package docbot crawls documentation sites into a vector store and answers
// questions from it.
//
// App is the entry point: it opens the configured store, ledger and AI
// provider and builds the crawler, ingestion pipeline, searcher and answerer
// on top of them.
package docbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/ai/openai"
	"github.com/poiesic/docbot/chunker"
	"github.com/poiesic/docbot/config"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/crawler"
	"github.com/poiesic/docbot/ingestion"
	"github.com/poiesic/docbot/ledger"
	"github.com/poiesic/docbot/reembed"
	"github.com/poiesic/docbot/search"
	"github.com/poiesic/docbot/storage"
	"github.com/poiesic/docbot/storage/badger"
	"github.com/poiesic/docbot/storage/sqlite"
)

// App wires the configured store, ledger and AI provider together and builds
// the services that use them.
type App struct {
	config   *config.Config
	store    storage.VectorStore
	ledger   ledger.Ledger
	provider ai.AIProvider
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	provider        ai.AIProvider
	logger          *slog.Logger
	dimensionChange bool
}

// WithProvider uses provider instead of building an OpenAI-compatible one
// from the ai config section. The App takes ownership of it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *appOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// AllowDimensionChange opens an existing collection even when the configured
// embedding model produces vectors of another length. Only re-embedding and
// clearing make sense on such a store.
func AllowDimensionChange() Option {
	return func(o *appOptions) {
		o.dimensionChange = true
	}
}

// New opens the store and ledger described by cfg. A nil cfg selects
// config.Default(). Opening the store embeds a probe text to learn the
// vector dimension; an existing collection of another dimension is rejected
// with storage.ErrDimensionMismatch unless AllowDimensionChange is given.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	provider := options.provider
	if provider == nil {
		p, err := openai.NewProvider(cfg.AIConfig())
		if err != nil {
			return nil, err
		}
		provider = p
	}
	embedder := ai.NewBatchEmbedder(provider.Embedder(), cfg.AI.BatchSize, cfg.AI.Normalize)

	store, err := openStore(cfg.Store, storage.EmbedderProbe(embedder), options.dimensionChange, options.logger)
	if err != nil {
		provider.Close()
		return nil, err
	}

	visited, err := OpenLedger(cfg.Ledger)
	if err != nil {
		store.Close()
		provider.Close()
		return nil, err
	}

	return &App{
		config:   cfg,
		store:    store,
		ledger:   visited,
		provider: provider,
		embedder: embedder,
		logger:   options.logger,
	}, nil
}

func openStore(cfg config.StoreConfig, probe storage.DimensionProbe, allowChange bool, logger *slog.Logger) (storage.VectorStore, error) {
	switch cfg.Backend {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, err
		}
		opts := []sqlite.Option{sqlite.WithLogger(logger)}
		if allowChange {
			opts = append(opts, sqlite.AllowDimensionChange())
		}
		return sqlite.Open(cfg.Path, cfg.Collection, probe, opts...)
	case config.StoreBadger:
		opts := []badger.Option{badger.WithLogger(logger)}
		if allowChange {
			opts = append(opts, badger.AllowDimensionChange())
		}
		return badger.Open(cfg.Path, cfg.Collection, probe, opts...)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// OpenLedger opens the visited-URL ledger described by cfg without loading it.
func OpenLedger(cfg config.LedgerConfig) (ledger.Ledger, error) {
	switch cfg.Backend {
	case config.LedgerRedis:
		return ledger.NewRedisLedger(cfg.RedisAddr, cfg.RedisKey), nil
	case config.LedgerFile:
		return ledger.NewFileLedger(cfg.Path)
	}
	return nil, fmt.Errorf("%w: unknown ledger backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// Close releases the store, the ledger connection and the provider.
func (a *App) Close() error {
	var errs []error
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if c, ok := a.ledger.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Error("error closing ledger", "err", err)
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing vector store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Config() *config.Config     { return a.config }
func (a *App) Store() storage.VectorStore { return a.store }
func (a *App) Ledger() ledger.Ledger      { return a.ledger }
func (a *App) Embedder() ai.Embedder      { return a.embedder }
func (a *App) Provider() ai.AIProvider    { return a.provider }

// NewCrawler builds a crawler from the crawler config section.
func (a *App) NewCrawler(opts ...crawler.Option) (*crawler.Crawler, error) {
	opts = append([]crawler.Option{crawler.WithLogger(a.logger)}, opts...)
	return crawler.New(a.config.CrawlerConfig(), opts...)
}

// NewPipeline builds an ingestion pipeline reading from source.
func (a *App) NewPipeline(source ingestion.PageSource, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	c, err := chunker.New(a.config.ChunkerConfig())
	if err != nil {
		return nil, err
	}
	base := []ingestion.Option{
		ingestion.WithChunker(c),
		ingestion.WithBatchSize(a.config.Ingest.BatchSize),
		ingestion.WithChannelSize(2 * a.config.Crawler.Concurrency),
		ingestion.WithLogger(a.logger),
	}
	return ingestion.NewPipeline(source, a.embedder, a.store, a.ledger, append(base, opts...)...)
}

// Ingest crawls the configured sites once and stores what it finds.
func (a *App) Ingest(ctx context.Context) (*core.IngestResult, error) {
	c, err := a.NewCrawler()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	p, err := a.NewPipeline(c)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// NewJobRunner returns a runner whose jobs call Ingest and whose Reset
// clears the store.
func (a *App) NewJobRunner() (*ingestion.JobRunner, error) {
	return ingestion.NewJobRunner(ingestion.RunnerFunc(a.Ingest), a.store)
}

// NewSearcher builds a searcher from the search config section.
func (a *App) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{
		search.WithDefaultK(a.config.Search.DefaultK),
		search.WithCacheSize(a.config.Search.CacheSize),
		search.WithLogger(a.logger),
	}
	return search.NewSearcher(a.store, a.embedder, append(base, opts...)...)
}

// NewAnswerer builds a chat answerer on top of searcher.
func (a *App) NewAnswerer(searcher *search.Searcher, opts ...search.AnswerOption) (*search.Answerer, error) {
	generator := a.provider.Generator()
	var selector search.Selector = search.TopSelector{N: a.config.Search.MaxCitations}
	if a.config.Search.SelectCitations {
		selector = search.GeneratorSelector{Generator: generator, Max: a.config.Search.MaxCitations}
	}
	base := []search.AnswerOption{
		search.WithSelector(selector),
		search.WithAnswerLogger(a.logger),
	}
	return search.NewAnswerer(searcher, generator, append(base, opts...)...)
}

// NewReembedder builds a reembedder over the store. Progress goes to w.
func (a *App) NewReembedder(w io.Writer) *reembed.Reembedder {
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = a.config.AI.BatchSize
	return reembed.NewReembedder(a.store, a.embedder, cfg, w)
}
