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
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/poiesic/docbot/metrics"
)

// entry is a not-yet-fetched URL and its link distance from a seed.
type entry struct {
	url   string
	depth int
}

type pollResult int

const (
	pollEntry     pollResult = iota // an entry was claimed
	pollEmpty                       // nothing queued, other workers still active
	pollExhausted                   // nothing queued and nobody active
	pollBudget                      // page budget reached, queue drained
)

// frontier owns the work queue, the seen set, the emitted-page counter and
// the active-worker count. One mutex guards all of it.
type frontier struct {
	mu       sync.Mutex
	queue    []entry
	capacity int
	seen     map[string]struct{}
	filter   *bloom.BloomFilter
	emitted  int
	maxPages int
	active   int
	wake     chan struct{}
}

// newFrontier creates a frontier whose seen set starts as a copy of visited.
func newFrontier(capacity, maxPages int, visited map[string]struct{}) *frontier {
	estimate := uint(capacity + len(visited))
	f := &frontier{
		capacity: capacity,
		seen:     make(map[string]struct{}, len(visited)),
		filter:   bloom.NewWithEstimates(estimate, 0.01),
		maxPages: maxPages,
		wake:     make(chan struct{}, 1),
	}
	for u := range visited {
		f.markLocked(u)
	}
	return f
}

// seenLocked answers from the bloom filter when it can and falls back to the
// exact set on a possible hit.
func (f *frontier) seenLocked(u string) bool {
	if !f.filter.TestString(u) {
		return false
	}
	_, ok := f.seen[u]
	return ok
}

func (f *frontier) markLocked(u string) {
	f.seen[u] = struct{}{}
	f.filter.AddString(u)
}

// push enqueues u unless it has been seen or the queue is full.
// An enqueued URL is marked seen so it is claimed by exactly one worker.
func (f *frontier) push(u string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seenLocked(u) || len(f.queue) >= f.capacity || f.emitted >= f.maxPages {
		return false
	}
	f.markLocked(u)
	f.queue = append(f.queue, entry{url: u, depth: depth})
	metrics.QueueDepth.Set(float64(len(f.queue)))
	f.signal()
	return true
}

// isSeen reports whether u was visited before the crawl or already queued.
func (f *frontier) isSeen(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenLocked(u)
}

// next claims the oldest queued entry. Once the budget is spent it discards
// everything still queued.
func (f *frontier) next() (entry, pollResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.emitted >= f.maxPages {
		f.queue = nil
		metrics.QueueDepth.Set(0)
		return entry{}, pollBudget
	}
	if len(f.queue) == 0 {
		if f.active == 0 {
			return entry{}, pollExhausted
		}
		return entry{}, pollEmpty
	}

	e := f.queue[0]
	f.queue[0] = entry{}
	f.queue = f.queue[1:]
	f.active++
	metrics.QueueDepth.Set(float64(len(f.queue)))
	return e, pollEntry
}

// done releases a claim taken by next.
func (f *frontier) done() {
	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	f.signal()
}

// commit reserves one unit of the page budget.
func (f *frontier) commit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.emitted >= f.maxPages {
		return false
	}
	f.emitted++
	return true
}

// release returns a unit reserved by commit whose page was never delivered.
func (f *frontier) release() {
	f.mu.Lock()
	f.emitted--
	f.mu.Unlock()
	f.signal()
}

func (f *frontier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emitted
}

// signal wakes one idle worker without blocking.
func (f *frontier) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}
