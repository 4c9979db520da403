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

// Package config loads application settings from a config file and
// DOCBOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/docbot/ai"
	"github.com/poiesic/docbot/chunker"
	"github.com/poiesic/docbot/crawler"
	"github.com/poiesic/docbot/storage"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. DOCBOT_STORE_PATH.
const EnvPrefix = "DOCBOT"

// Store backends.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
)

// Ledger backends.
const (
	LedgerFile  = "file"
	LedgerRedis = "redis"
)

// ErrInvalidConfig is returned when loaded settings fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete application configuration.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Chunker ChunkerConfig `mapstructure:"chunker"`
	AI      AIConfig      `mapstructure:"ai"`
	Store   StoreConfig   `mapstructure:"store"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Search  SearchConfig  `mapstructure:"search"`
	Server  ServerConfig  `mapstructure:"server"`
}

type CrawlerConfig struct {
	BaseURLs       []string      `mapstructure:"base_urls"`
	UserAgent      string        `mapstructure:"user_agent"`
	RobotsAgent    string        `mapstructure:"robots_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	MaxPages       int           `mapstructure:"max_pages"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MinTextLength  int           `mapstructure:"min_text_length"`
	QueueSize      int           `mapstructure:"queue_size"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	Render         bool          `mapstructure:"render"`
}

type ChunkerConfig struct {
	ChunkSize     int `mapstructure:"chunk_size"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`
	MinPageChars  int `mapstructure:"min_page_chars"`
	MinChunkChars int `mapstructure:"min_chunk_chars"`
}

type AIConfig struct {
	EmbeddingHost  string `mapstructure:"embedding_host"`
	GeneratorHost  string `mapstructure:"generator_host"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	GeneratorModel string `mapstructure:"generator_model"`
	APIToken       string `mapstructure:"api_token"`
	BatchSize      int    `mapstructure:"batch_size"`
	Normalize      bool   `mapstructure:"normalize"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection"`
}

type LedgerConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

type IngestConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

type SearchConfig struct {
	DefaultK        int  `mapstructure:"default_k"`
	CacheSize       int  `mapstructure:"cache_size"`
	MaxCitations    int  `mapstructure:"max_citations"`
	SelectCitations bool `mapstructure:"select_citations"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	cc := crawler.DefaultConfig()
	v.SetDefault("crawler.base_urls", cc.BaseURLs)
	v.SetDefault("crawler.user_agent", cc.UserAgent)
	v.SetDefault("crawler.robots_agent", cc.RobotsAgent)
	v.SetDefault("crawler.request_timeout", cc.RequestTimeout)
	v.SetDefault("crawler.concurrency", cc.Concurrency)
	v.SetDefault("crawler.max_pages", cc.MaxPages)
	v.SetDefault("crawler.max_depth", cc.MaxDepth)
	v.SetDefault("crawler.min_text_length", cc.MinTextLength)
	v.SetDefault("crawler.queue_size", cc.QueueSize)
	v.SetDefault("crawler.poll_interval", cc.PollInterval)
	v.SetDefault("crawler.max_body_bytes", cc.MaxBodyBytes)
	v.SetDefault("crawler.respect_robots", cc.RespectRobots)
	v.SetDefault("crawler.render", cc.Render)

	ch := chunker.DefaultConfig()
	v.SetDefault("chunker.chunk_size", ch.ChunkSize)
	v.SetDefault("chunker.chunk_overlap", ch.ChunkOverlap)
	v.SetDefault("chunker.min_page_chars", ch.MinPageChars)
	v.SetDefault("chunker.min_chunk_chars", ch.MinChunkChars)

	ac := ai.DefaultConfig()
	v.SetDefault("ai.embedding_host", ac.EmbeddingHost)
	v.SetDefault("ai.generator_host", ac.GeneratorHost)
	v.SetDefault("ai.embedding_model", ac.EmbeddingModel)
	v.SetDefault("ai.generator_model", ac.GeneratorModel)
	v.SetDefault("ai.api_token", ac.APIToken)
	v.SetDefault("ai.batch_size", ac.BatchSize)
	v.SetDefault("ai.normalize", ac.Normalize)

	v.SetDefault("store.backend", StoreBadger)
	v.SetDefault("store.path", "data/badger")
	v.SetDefault("store.collection", storage.DefaultCollection)

	v.SetDefault("ledger.backend", LedgerFile)
	v.SetDefault("ledger.path", "resources/visited_urls.json")
	v.SetDefault("ledger.redis_addr", "localhost:6379")
	v.SetDefault("ledger.redis_key", "docbot:visited")

	v.SetDefault("ingest.batch_size", 10)

	v.SetDefault("search.default_k", 5)
	v.SetDefault("search.cache_size", 256)
	v.SetDefault("search.max_citations", 2)
	v.SetDefault("search.select_citations", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
}

// Load reads the configuration. When path is empty, docbot.{yaml,toml,json}
// is looked up in the working directory and a missing file is not an error.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("docbot")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the settings that no component validates itself.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBadger, StoreSQLite:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store path is empty", ErrInvalidConfig)
	}
	if err := storage.ValidateCollection(c.Store.Collection); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Ledger.Backend {
	case LedgerFile:
		if c.Ledger.Path == "" {
			return fmt.Errorf("%w: ledger path is empty", ErrInvalidConfig)
		}
	case LedgerRedis:
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("%w: redis address is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ledger backend %q", ErrInvalidConfig, c.Ledger.Backend)
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("%w: ingest batch size must be at least 1", ErrInvalidConfig)
	}
	if err := c.CrawlerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.ChunkerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// CrawlerConfig converts the crawler section.
func (c *Config) CrawlerConfig() *crawler.Config {
	return &crawler.Config{
		BaseURLs:       c.Crawler.BaseURLs,
		UserAgent:      c.Crawler.UserAgent,
		RobotsAgent:    c.Crawler.RobotsAgent,
		RequestTimeout: c.Crawler.RequestTimeout,
		Concurrency:    c.Crawler.Concurrency,
		MaxPages:       c.Crawler.MaxPages,
		MaxDepth:       c.Crawler.MaxDepth,
		MinTextLength:  c.Crawler.MinTextLength,
		QueueSize:      c.Crawler.QueueSize,
		PollInterval:   c.Crawler.PollInterval,
		MaxBodyBytes:   c.Crawler.MaxBodyBytes,
		RespectRobots:  c.Crawler.RespectRobots,
		Render:         c.Crawler.Render,
	}
}

// ChunkerConfig converts the chunker section.
func (c *Config) ChunkerConfig() *chunker.Config {
	return &chunker.Config{
		ChunkSize:     c.Chunker.ChunkSize,
		ChunkOverlap:  c.Chunker.ChunkOverlap,
		Separators:    chunker.DefaultSeparators,
		MinPageChars:  c.Chunker.MinPageChars,
		MinChunkChars: c.Chunker.MinChunkChars,
	}
}

// AIConfig converts the ai section.
func (c *Config) AIConfig() *ai.Config {
	return &ai.Config{
		EmbeddingHost:  c.AI.EmbeddingHost,
		GeneratorHost:  c.AI.GeneratorHost,
		EmbeddingModel: c.AI.EmbeddingModel,
		GeneratorModel: c.AI.GeneratorModel,
		APIToken:       c.AI.APIToken,
		BatchSize:      c.AI.BatchSize,
		Normalize:      c.AI.Normalize,
	}
}
