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
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the crawl bounds and HTTP settings.
type Config struct {
	// BaseURLs seed the crawl and form the allow-list: a URL is followed
	// when any base URL is a substring of it.
	BaseURLs []string

	UserAgent string

	// RobotsAgent is the product token matched against robots.txt groups.
	RobotsAgent string

	RequestTimeout time.Duration

	// Concurrency is the number of crawl workers.
	Concurrency int

	// MaxPages caps the number of pages emitted in one crawl.
	MaxPages int

	// MaxDepth is the deepest link distance from a seed that is fetched.
	MaxDepth int

	// MinTextLength drops pages whose extracted text is shorter (after trimming).
	MinTextLength int

	// QueueSize bounds the frontier. Links discovered while it is full are dropped.
	QueueSize int

	// PollInterval is how long an idle worker waits before re-checking the frontier.
	PollInterval time.Duration

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64

	// RespectRobots consults robots.txt before fetching.
	RespectRobots bool

	// Render fetches pages through headless Chrome instead of plain HTTP.
	Render bool
}

// DefaultConfig returns the crawl settings used for the GitLab handbook.
func DefaultConfig() *Config {
	return &Config{
		BaseURLs: []string{
			"https://handbook.gitlab.com/",
			"https://about.gitlab.com/direction/",
		},
		UserAgent:      "Mozilla/5.0 (compatible; GitLabDocBot/1.0)",
		RobotsAgent:    "GitLabDocBot",
		RequestTimeout: 10 * time.Second,
		Concurrency:    8,
		MaxPages:       300,
		MaxDepth:       3,
		MinTextLength:  100,
		QueueSize:      10000,
		PollInterval:   100 * time.Millisecond,
		MaxBodyBytes:   5 << 20,
	}
}

// Validate checks that every bound is usable.
func (c *Config) Validate() error {
	if len(c.BaseURLs) == 0 {
		return fmt.Errorf("%w: at least one base URL is required", ErrInvalidConfig)
	}
	for _, base := range c.BaseURLs {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: base URL %q must be an absolute http(s) URL", ErrInvalidConfig, base)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("%w: user agent is required", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("%w: max pages must be at least 1", ErrInvalidConfig)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: max depth cannot be negative", ErrInvalidConfig)
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("%w: min text length cannot be negative", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be at least 1", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max body bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

// Allowed reports whether rawURL falls under one of the base URLs.
func (c *Config) Allowed(rawURL string) bool {
	for _, base := range c.BaseURLs {
		if strings.Contains(rawURL, base) {
			return true
		}
	}
	return false
}
