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

package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/metrics"
)

// Crawler walks the allowed part of the web breadth-first from the configured
// seeds and emits qualifying pages.
type Crawler struct {
	config     *Config
	fetcher    Fetcher
	strategies []Strategy
	allow      func(string) bool
	robots     *robotsPolicy
	logger     *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler) error

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *Crawler) error {
		if fetcher == nil {
			return fmt.Errorf("%w: fetcher cannot be nil", ErrInvalidConfig)
		}
		c.fetcher = fetcher
		return nil
	}
}

// WithStrategies sets the ordered text-extraction strategies.
func WithStrategies(strategies ...Strategy) Option {
	return func(c *Crawler) error {
		if len(strategies) == 0 {
			return fmt.Errorf("%w: at least one extraction strategy is required", ErrInvalidConfig)
		}
		c.strategies = strategies
		return nil
	}
}

// WithAllowFunc replaces the base-URL substring allow-list.
func WithAllowFunc(allow func(string) bool) Option {
	return func(c *Crawler) error {
		if allow != nil {
			c.allow = allow
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "crawler")
		return nil
	}
}

// New creates a Crawler. Without WithFetcher it fetches over plain HTTP, or
// through headless Chrome when config.Render is set.
func New(config *Config, opts ...Option) (*Crawler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Crawler{
		config:     config,
		strategies: DefaultStrategies,
		allow:      config.Allowed,
		logger:     slog.Default().With("component", "crawler"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	httpFetcher := NewHTTPFetcher(config)
	if c.fetcher == nil {
		if config.Render {
			c.fetcher = NewRenderFetcher(config)
		} else {
			c.fetcher = httpFetcher
		}
	}
	if config.RespectRobots {
		c.robots = newRobotsPolicy(httpFetcher, config.RobotsAgent)
	}
	return c, nil
}

// Close releases the fetcher's resources.
func (c *Crawler) Close() error {
	if closer, ok := c.fetcher.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Crawl fetches pages starting from the base URLs and sends each qualifying
// page to out. URLs in visited are neither fetched nor emitted. out is closed
// when the crawl ends, which is how consumers learn that no more pages follow.
// Crawl returns the number of pages emitted.
func (c *Crawler) Crawl(ctx context.Context, visited map[string]struct{}, out chan<- *core.Page) (int, error) {
	defer close(out)

	f := newFrontier(c.config.QueueSize, c.config.MaxPages, visited)
	for _, seed := range c.config.BaseURLs {
		if !f.push(seed, 0) {
			metrics.PagesTotal.WithLabelValues(metrics.OutcomeSkippedSeen).Inc()
			c.logger.Debug("skipping seed", "url", seed)
		}
	}

	pool, err := ants.NewPool(c.config.Concurrency)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			c.work(ctx, f, out)
		}); err != nil {
			wg.Done()
			c.logger.Error("failed to start crawl worker", "err", err)
		}
	}
	wg.Wait()

	emitted := f.count()
	c.logger.Info("crawl finished", "pages", emitted)
	return emitted, ctx.Err()
}

// work claims entries until the frontier is exhausted, the page budget is
// spent, or ctx is cancelled.
func (c *Crawler) work(ctx context.Context, f *frontier, out chan<- *core.Page) {
	for ctx.Err() == nil {
		e, res := f.next()
		switch res {
		case pollExhausted, pollBudget:
			// pass the wakeup on so every idle worker sees the end state
			f.signal()
			return
		case pollEmpty:
			select {
			case <-ctx.Done():
				return
			case <-f.wake:
			case <-time.After(c.config.PollInterval):
			}
			continue
		}

		c.visit(ctx, f, e, out)
		f.done()
	}
}

// visit fetches one entry and, if the page qualifies, emits it and queues its links.
func (c *Crawler) visit(ctx context.Context, f *frontier, e entry, out chan<- *core.Page) {
	if e.depth > c.config.MaxDepth {
		return
	}
	logger := c.logger.With("url", e.url, "depth", e.depth)

	if c.robots != nil && !c.robots.allowed(ctx, e.url) {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeDisallowed).Inc()
		logger.Debug("disallowed by robots.txt")
		return
	}

	start := time.Now()
	resp, err := c.fetcher.Fetch(ctx, e.url)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeFetchError).Inc()
		logger.Warn("fetch failed", "err", err)
		return
	}
	if !resp.OK() {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeBadStatus).Inc()
		logger.Debug("dropping page", "err", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
		return
	}
	if !resp.IsHTML() {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeNotHTML).Inc()
		logger.Debug("dropping page", "err", ErrNotHTML, "content_type", resp.ContentType)
		return
	}

	markup := string(resp.Body)
	text := ExtractText(markup, c.strategies)
	chars := utf8.RuneCountInString(text)
	if chars < c.config.MinTextLength {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeTooShort).Inc()
		logger.Debug("dropping page with too little text", "chars", chars)
		return
	}

	doc, err := parseDocument(e.url, resp.Body)
	if err != nil {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeFetchError).Inc()
		logger.Warn("failed to parse page", "err", err)
		return
	}

	if !f.commit() {
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeOverBudget).Inc()
		return
	}

	page := &core.Page{
		URL:   e.url,
		Depth: e.depth,
		HTML:  markup,
		Text:  text,
		Title: doc.Title(),
	}
	select {
	case out <- page:
		metrics.PagesTotal.WithLabelValues(metrics.OutcomeEmitted).Inc()
		logger.Info("emitted page", "chars", chars)
	case <-ctx.Done():
		f.release()
		return
	}

	if e.depth >= c.config.MaxDepth {
		return
	}
	for _, link := range doc.Links() {
		if !c.allow(link) || f.isSeen(link) {
			continue
		}
		f.push(link, e.depth+1)
	}
}
