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

// Package crawler discovers and fetches documentation pages.
//
// A crawl starts from the configured base URLs and walks links
// breadth-first with a fixed number of workers. All shared state (the
// queue, the seen set, the emitted-page count and the number of busy
// workers) lives in a single frontier guarded by one mutex, so the page
// budget is never exceeded and no URL is fetched twice.
//
// A page is emitted when it returns 2xx with an HTML content type and its
// extracted text is at least MinTextLength characters. Text extraction runs
// an ordered list of Strategy functions and keeps the first non-empty
// result.
//
// Basic usage:
//
//	c, err := crawler.New(crawler.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	pages := make(chan *core.Page, 16)
//	go func() {
//		for page := range pages {
//			// consume
//		}
//	}()
//	n, err := c.Crawl(ctx, visited, pages)
package crawler
