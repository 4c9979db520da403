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

// Package ledger records which URLs have been ingested so later runs skip
// them. Membership is held in memory during a run and persisted with Save.
package ledger

import (
	"context"
	"sort"
	"sync"
)

// Ledger is the durable set of ingested URLs.
type Ledger interface {
	// Load replaces the in-memory set with the persisted one.
	Load(ctx context.Context) error

	Contains(url string) bool
	Add(url string)

	// Members returns a copy of the set.
	Members() map[string]struct{}

	Len() int

	// Save persists the URLs added since Load. Save is atomic.
	Save(ctx context.Context) error

	// Clear empties both the in-memory and the persisted set.
	Clear(ctx context.Context) error
}

// set is the in-memory membership shared by the implementations.
type set struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

func (s *set) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[url]
	return ok
}

func (s *set) Add(url string) {
	s.mu.Lock()
	s.urls[url] = struct{}{}
	s.mu.Unlock()
}

func (s *set) Members() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.urls))
	for u := range s.urls {
		out[u] = struct{}{}
	}
	return out
}

func (s *set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

func (s *set) replace(urls []string) {
	m := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		m[u] = struct{}{}
	}
	s.mu.Lock()
	s.urls = m
	s.mu.Unlock()
}

// sorted returns the members in lexical order.
func (s *set) sorted() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
