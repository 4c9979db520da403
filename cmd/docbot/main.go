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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/docbot"
	"github.com/poiesic/docbot/api"
	"github.com/poiesic/docbot/config"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/mcpserver"
	"github.com/poiesic/docbot/reembed"
	"github.com/poiesic/docbot/search"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docbot",
		Usage: "Crawl documentation sites into a vector store and search them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML, TOML or JSON config file (default ./docbot.*)",
				EnvVars: []string{"DOCBOT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before:   setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Crawl the configured sites and store new pages",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "url",
						Usage: "Seed URL, repeatable (overrides crawler.base_urls)",
					},
					&cli.IntFlag{
						Name:  "max-pages",
						Usage: "Maximum number of pages to emit",
					},
					&cli.IntFlag{
						Name:  "max-depth",
						Usage: "Maximum link depth from a seed",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of crawl workers",
					},
					&cli.BoolFlag{
						Name:  "render",
						Usage: "Render pages in headless Chrome",
					},
					&cli.BoolFlag{
						Name:  "respect-robots",
						Usage: "Honor robots.txt",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Empty the vector store",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "ledger",
						Usage: "Also clear the visited-URL ledger",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a semantic search",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results",
						Value: search.DefaultK,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print search progress",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the stored documentation",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of candidate chunks",
						Value: search.DefaultK,
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve search tools over MCP stdio",
				Action: mcpCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed every stored chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: reembed.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: reembed.DefaultConfig().ReportInterval,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: reembed.DefaultConfig().MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: reembed.DefaultConfig().RetryDelay,
					},
				},
			},
			{
				Name:  "ledger",
				Usage: "Inspect or clear the visited-URL ledger",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "List visited URLs",
						Action: ledgerShowCommand,
					},
					{
						Name:   "clear",
						Usage:  "Forget every visited URL",
						Action: ledgerClearCommand,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(c.String("log-format")) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.String("log-format"))
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openApp(cfg *config.Config, opts ...docbot.Option) (*docbot.App, error) {
	app, err := docbot.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open docbot: %w", err)
	}
	return app, nil
}

// applyCrawlOverrides copies the ingest flags that were set onto cfg.
func applyCrawlOverrides(c *cli.Context, cfg *config.Config) {
	if urls := c.StringSlice("url"); len(urls) > 0 {
		cfg.Crawler.BaseURLs = urls
	}
	if c.IsSet("max-pages") {
		cfg.Crawler.MaxPages = c.Int("max-pages")
	}
	if c.IsSet("max-depth") {
		cfg.Crawler.MaxDepth = c.Int("max-depth")
	}
	if c.IsSet("concurrency") {
		cfg.Crawler.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("render") {
		cfg.Crawler.Render = c.Bool("render")
	}
	if c.IsSet("respect-robots") {
		cfg.Crawler.RespectRobots = c.Bool("respect-robots")
	}
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyCrawlOverrides(c, cfg)

	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(c)
	defer cancel()

	start := time.Now()
	result, err := app.Ingest(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Ingested %d pages into %d chunks in %s\n",
		result.Pages, result.Chunks, time.Since(start).Round(time.Millisecond))
	return nil
}

func resetCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(cfg, docbot.AllowDimensionChange())
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store().Clear(c.Context); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Cleared collection %s\n", cfg.Store.Collection)

	if c.Bool("ledger") {
		if err := app.Ledger().Clear(c.Context); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
		fmt.Fprintln(c.App.Writer, "Cleared ledger")
	}
	return nil
}

// printMonitor writes search progress as it happens.
type printMonitor struct {
	w io.Writer
}

var _ search.SearchMonitor = (*printMonitor)(nil)

func (m *printMonitor) Start(query string) {
	fmt.Fprintf(m.w, "Searching for %q\n", query)
}

func (m *printMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(m.w, "Embedded query (%d dimensions)\n", dimension)
}

func (m *printMonitor) Hit(result *core.SearchResult) {
	fmt.Fprintf(m.w, "  hit %s#%d [%0.3f]\n", result.Chunk.URL, result.Chunk.Index, result.Similarity)
}

func (m *printMonitor) Finish(results []*core.SearchResult) {
	fmt.Fprintf(m.w, "Found %d hits\n\n", len(results))
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if query == "" {
		return errors.New("a search query is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}
	var monitor search.SearchMonitor
	if c.Bool("verbose") {
		monitor = &printMonitor{w: c.App.ErrWriter}
	}
	results, err := searcher.SearchWithMonitor(c.Context, query, c.Int("k"), monitor)
	if err != nil {
		return err
	}
	printResults(c.App.Writer, results)
	return nil
}

func printResults(w io.Writer, results []*core.SearchResult) {
	for _, r := range results {
		title := r.Chunk.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(w, "%d. %s [%0.3f]\n   %s (chunk %d/%d)\n   %s\n\n",
			r.Rank, title, r.Similarity, r.Chunk.URL, r.Chunk.Index+1, r.Chunk.Total, snippet(r.Chunk.Content, 200))
	}
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if question == "" {
		return errors.New("a question is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}
	answerer, err := app.NewAnswerer(searcher)
	if err != nil {
		return err
	}
	resp, err := answerer.Chat(c.Context, search.ChatRequest{Query: question, K: c.Int("k")})
	if errors.Is(err, search.ErrNoResults) || errors.Is(err, search.ErrNoCitations) {
		fmt.Fprintln(c.App.Writer, "No relevant documentation found.")
		return nil
	}
	if err != nil {
		return err
	}
	printAnswer(c.App.Writer, resp)
	return nil
}

// printAnswer writes the answer followed by its numbered sources.
func printAnswer(w io.Writer, resp *search.ChatResponse) {
	fmt.Fprintln(w, resp.Answer)
	fmt.Fprintln(w)
	for _, citation := range resp.Citations {
		fmt.Fprintf(w, "[%s] %s (%s)\n", citation.ID, citation.Title, citation.URL)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobs, err := app.NewJobRunner()
	if err != nil {
		return err
	}
	defer jobs.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}
	answerer, err := app.NewAnswerer(searcher)
	if err != nil {
		return err
	}
	server, err := api.NewServer(jobs, searcher,
		api.WithAnswerer(answerer),
		api.WithHTTPTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return server.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
}

func mcpCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	searcher, err := app.NewSearcher()
	if err != nil {
		return err
	}
	server, err := mcpserver.NewServer(searcher)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return server.Serve(ctx)
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	app, err := openApp(cfg, docbot.AllowDimensionChange())
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext(c)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Store: %s (%s)\n", cfg.Store.Path, cfg.Store.Backend)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	reembedder := reembed.NewReembedder(app.Store(), app.Embedder(), reembedConfig, os.Stderr)
	count, err := reembedder.Run(ctx)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Re-embedded %d chunks\n", count)
	return nil
}

func ledgerShowCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := docbot.OpenLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	if closer, ok := l.(io.Closer); ok {
		defer closer.Close()
	}
	if err := l.Load(c.Context); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	for _, url := range slices.Sorted(maps.Keys(l.Members())) {
		fmt.Fprintln(c.App.Writer, url)
	}
	fmt.Fprintf(c.App.ErrWriter, "%d visited URLs\n", l.Len())
	return nil
}

func ledgerClearCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := docbot.OpenLedger(cfg.Ledger)
	if err != nil {
		return err
	}
	if closer, ok := l.(io.Closer); ok {
		defer closer.Close()
	}
	if err := l.Clear(c.Context); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Cleared ledger")
	return nil
}
