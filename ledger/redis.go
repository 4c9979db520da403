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

package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the Redis set holding ingested URLs.
const DefaultRedisKey = "docbot:visited"

// RedisLedger persists the set as a Redis SET so several hosts can share one
// ledger.
type RedisLedger struct {
	set
	client *redis.Client
	key    string

	addedMu sync.Mutex
	added   map[string]struct{} // URLs added since Load, not yet saved
}

var _ Ledger = (*RedisLedger)(nil)

// NewRedisLedger creates a ledger in key on the server at addr.
func NewRedisLedger(addr, key string) *RedisLedger {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLedger{
		set:    set{urls: make(map[string]struct{})},
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
		added:  make(map[string]struct{}),
	}
}

func (l *RedisLedger) Load(ctx context.Context) error {
	urls, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	l.replace(urls)
	l.resetAdded()
	return nil
}

func (l *RedisLedger) Add(url string) {
	if l.Contains(url) {
		return
	}
	l.set.Add(url)
	l.addedMu.Lock()
	l.added[url] = struct{}{}
	l.addedMu.Unlock()
}

// Save adds the URLs recorded since Load to the Redis set. Members written by
// other hosts in the meantime are kept.
func (l *RedisLedger) Save(ctx context.Context) error {
	l.addedMu.Lock()
	defer l.addedMu.Unlock()
	if len(l.added) == 0 {
		return nil
	}
	members := make([]string, 0, len(l.added))
	for u := range l.added {
		members = append(members, u)
	}
	sort.Strings(members)
	args := make([]any, len(members))
	for i, u := range members {
		args[i] = u
	}
	if err := l.client.SAdd(ctx, l.key, args...).Err(); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	l.added = make(map[string]struct{})
	return nil
}

func (l *RedisLedger) Clear(ctx context.Context) error {
	l.replace(nil)
	l.resetAdded()
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}

func (l *RedisLedger) resetAdded() {
	l.addedMu.Lock()
	l.added = make(map[string]struct{})
	l.addedMu.Unlock()
}

// Close releases the Redis connection pool.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
