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
	"time"

	"github.com/chromedp/chromedp"
)

// RenderFetcher loads pages in headless Chrome so script-built content is
// present in the returned markup.
type RenderFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
}

var _ Fetcher = (*RenderFetcher)(nil)

// NewRenderFetcher starts a Chrome allocator. Call Close to release it.
func NewRenderFetcher(config *Config) *RenderFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &RenderFetcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     config.RequestTimeout,
	}
}

// Fetch navigates to url and returns the rendered document.
func (r *RenderFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, r.timeout)
	defer timeoutCancel()

	var markup string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &markup),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}

	return &Response{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(markup),
	}, nil
}

// Close shuts down the browser.
func (r *RenderFetcher) Close() error {
	r.allocCancel()
	return nil
}
