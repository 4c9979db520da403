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
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filler = strings.Repeat("The handbook describes how the company works. ", 4)

// site is an httptest server that serves HTML pages and counts hits per path.
type site struct {
	*httptest.Server
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
	raw   map[string]func(http.ResponseWriter)
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{
		hits:  make(map[string]int),
		pages: make(map[string]string),
		raw:   make(map[string]func(http.ResponseWriter)),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.pages[r.URL.Path]
		raw := s.raw[r.URL.Path]
		s.mu.Unlock()

		if raw != nil {
			raw(w)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

// page registers an HTML page with enough text to qualify and links to targets.
func (s *site) page(path, title string, links ...string) {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><main><h1>%s</h1><p>%s</p>", title, title, filler)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	b.WriteString("</main></body></html>")
	s.mu.Lock()
	s.pages[path] = b.String()
	s.mu.Unlock()
}

// handle registers a custom handler for path.
func (s *site) handle(path string, fn func(http.ResponseWriter)) {
	s.mu.Lock()
	s.raw[path] = fn
	s.mu.Unlock()
}

func (s *site) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(bases ...string) *Config {
	cfg := DefaultConfig()
	cfg.BaseURLs = bases
	cfg.Concurrency = 4
	cfg.RequestTimeout = 2 * time.Second
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func crawlAll(t *testing.T, c *Crawler, visited map[string]struct{}) ([]*core.Page, int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := make(chan *core.Page, 2)
	var pages []*core.Page
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range out {
			pages = append(pages, p)
		}
	}()

	n, err := c.Crawl(ctx, visited, out)
	require.NoError(t, err)
	<-done
	return pages, n
}

func urls(pages []*core.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.URL
	}
	sort.Strings(out)
	return out
}

func TestCrawl_RespectsMaxDepth(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root", "/a")
	s.page("/a", "A", "/b")
	s.page("/b", "B", "/c")
	s.page("/c", "C")

	cfg := testConfig(s.URL + "/")
	cfg.MaxDepth = 1
	c, err := New(cfg)
	require.NoError(t, err)

	pages, n := crawlAll(t, c, nil)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{s.URL + "/", s.URL + "/a"}, urls(pages))
	assert.Zero(t, s.hitCount("/b"))

	for _, p := range pages {
		assert.LessOrEqual(t, p.Depth, 1)
		if p.URL == s.URL+"/a" {
			assert.Equal(t, 1, p.Depth)
			assert.Equal(t, "A", p.Title)
			assert.Contains(t, p.Text, "handbook describes")
			assert.Contains(t, p.HTML, "<main>")
		}
	}
}

func TestCrawl_StopsAtMaxPages(t *testing.T) {
	s := newSite(t)
	var links []string
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("/p%02d", i)
		links = append(links, path)
		s.page(path, path)
	}
	s.page("/", "Root", links...)

	cfg := testConfig(s.URL + "/")
	cfg.MaxPages = 5
	c, err := New(cfg)
	require.NoError(t, err)

	pages, n := crawlAll(t, c, nil)
	assert.Equal(t, 5, n)
	assert.Len(t, pages, 5)

	seen := make(map[string]bool)
	for _, p := range pages {
		assert.False(t, seen[p.URL], "duplicate page %s", p.URL)
		seen[p.URL] = true
	}
}

func TestCrawl_FetchesEachURLOnce(t *testing.T) {
	s := newSite(t)
	var bases []string
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("/doc-%c/", 'a'+i)
		// every page links to every other page
		bases = append(bases, s.URL+path)
	}
	for i, base := range bases {
		path := strings.TrimPrefix(base, s.URL)
		s.page(path, fmt.Sprintf("Doc %d", i), bases...)
	}

	cfg := testConfig(bases...)
	cfg.MaxPages = 10
	c, err := New(cfg)
	require.NoError(t, err)

	pages, n := crawlAll(t, c, nil)
	assert.Equal(t, 10, n)
	assert.Len(t, pages, 10)
	for _, base := range bases {
		assert.Equal(t, 1, s.hitCount(strings.TrimPrefix(base, s.URL)), base)
	}
}

func TestCrawl_SkipsVisitedURLs(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root", "/old", "/new")
	s.page("/old", "Old")
	s.page("/new", "New")

	c, err := New(testConfig(s.URL + "/"))
	require.NoError(t, err)

	pages, n := crawlAll(t, c, map[string]struct{}{s.URL + "/old": {}})
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{s.URL + "/", s.URL + "/new"}, urls(pages))
	assert.Zero(t, s.hitCount("/old"))
}

func TestCrawl_AllSeedsVisited(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root", "/a")

	c, err := New(testConfig(s.URL + "/"))
	require.NoError(t, err)

	pages, n := crawlAll(t, c, map[string]struct{}{s.URL + "/": {}})
	assert.Zero(t, n)
	assert.Empty(t, pages)
	assert.Zero(t, s.hitCount("/"))
}

func TestCrawl_DropsUnqualifiedPages(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root", "/data.json", "/missing", "/short", "/broken", "https://elsewhere.example.com/x")
	s.handle("/data.json", func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"text":"`+filler+`"}`)
	})
	s.handle("/broken", func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "<html><body>"+filler+"</body></html>")
	})
	s.handle("/short", func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><main>Forty characters of text is not enough.</main></body></html>")
	})

	c, err := New(testConfig(s.URL + "/"))
	require.NoError(t, err)

	pages, n := crawlAll(t, c, nil)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{s.URL + "/"}, urls(pages))
	assert.Equal(t, 1, s.hitCount("/data.json"))
	assert.Equal(t, 1, s.hitCount("/missing"))
	assert.Equal(t, 1, s.hitCount("/short"))
	assert.Equal(t, 1, s.hitCount("/broken"))
}

func TestCrawl_RespectsRobots(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root", "/private/secret", "/public")
	s.page("/private/secret", "Secret")
	s.page("/public", "Public")
	s.handle("/robots.txt", func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})

	cfg := testConfig(s.URL + "/")
	cfg.RespectRobots = true
	c, err := New(cfg)
	require.NoError(t, err)

	pages, _ := crawlAll(t, c, nil)
	assert.Equal(t, []string{s.URL + "/", s.URL + "/public"}, urls(pages))
	assert.Zero(t, s.hitCount("/private/secret"))
	assert.Equal(t, 1, s.hitCount("/robots.txt"))
}

func TestCrawl_CustomStrategy(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root")

	custom := func(string) (string, error) { return filler + " custom", nil }
	c, err := New(testConfig(s.URL+"/"), WithStrategies(custom))
	require.NoError(t, err)

	pages, _ := crawlAll(t, c, nil)
	require.Len(t, pages, 1)
	assert.True(t, strings.HasSuffix(pages[0].Text, "custom"))
}

type stubFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	body := fmt.Sprintf(`<html><head><title>Stub</title></head><body><main>%s</main></body></html>`, filler)
	return &Response{URL: url, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
}

func TestCrawl_WithFetcher(t *testing.T) {
	f := &stubFetcher{}
	c, err := New(testConfig("https://docs.example.com/"), WithFetcher(f))
	require.NoError(t, err)

	pages, n := crawlAll(t, c, nil)
	assert.Equal(t, 1, n)
	require.Len(t, pages, 1)
	assert.Equal(t, "Stub", pages[0].Title)
	assert.Equal(t, []string{"https://docs.example.com/"}, f.calls)
}

// bodyFetcher serves the same HTML body for every URL and runs after once the
// body has been produced.
type bodyFetcher struct {
	body  string
	after func()
}

func (f *bodyFetcher) Fetch(_ context.Context, url string) (*Response, error) {
	if f.after != nil {
		defer f.after()
	}
	body := fmt.Sprintf(`<html><head><title>Stub</title></head><body><main>%s</main></body></html>`, f.body)
	return &Response{URL: url, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
}

func TestCrawl_MinTextLengthCountsCharacters(t *testing.T) {
	cfg := testConfig("https://docs.example.com/")
	cfg.MinTextLength = 100

	// 60 characters, 180 bytes
	short := &bodyFetcher{body: strings.Repeat("文档", 30)}
	c, err := New(cfg, WithFetcher(short))
	require.NoError(t, err)
	pages, n := crawlAll(t, c, nil)
	assert.Zero(t, n)
	assert.Empty(t, pages)

	long := &bodyFetcher{body: strings.Repeat("文档", 60)}
	c, err = New(cfg, WithFetcher(long))
	require.NoError(t, err)
	pages, n = crawlAll(t, c, nil)
	assert.Equal(t, 1, n)
	require.Len(t, pages, 1)
	assert.Equal(t, strings.Repeat("文档", 60), pages[0].Text)
}

func TestCrawl_CancelledSendIsNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &bodyFetcher{body: filler, after: cancel}
	c, err := New(testConfig("https://docs.example.com/"), WithFetcher(f))
	require.NoError(t, err)

	// nobody reads out, so the page can never be delivered
	out := make(chan *core.Page)
	n, err := c.Crawl(ctx, nil, out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestCrawl_Cancelled(t *testing.T) {
	s := newSite(t)
	s.page("/", "Root")

	c, err := New(testConfig(s.URL + "/"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan *core.Page)
	_, err = c.Crawl(ctx, nil, out)
	assert.ErrorIs(t, err, context.Canceled)

	_, open := <-out
	assert.False(t, open, "output channel is closed when the crawl ends")
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), WithStrategies())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
