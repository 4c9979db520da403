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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLedger_SaveAndLoad(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	l := NewRedisLedger(srv.Addr(), "docs:visited")
	defer l.Close()
	require.NoError(t, l.Load(ctx))
	assert.Zero(t, l.Len())

	l.Add("https://example.com/b")
	l.Add("https://example.com/a")
	l.Add("https://example.com/a")
	require.NoError(t, l.Save(ctx))

	members, err := srv.Members("docs:visited")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, members)

	reloaded := NewRedisLedger(srv.Addr(), "docs:visited")
	defer reloaded.Close()
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Contains("https://example.com/a"))
	assert.True(t, reloaded.Contains("https://example.com/b"))
}

func TestRedisLedger_SaveKeepsOtherHostsURLs(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	first := NewRedisLedger(srv.Addr(), "")
	defer first.Close()
	second := NewRedisLedger(srv.Addr(), "")
	defer second.Close()
	require.NoError(t, first.Load(ctx))
	require.NoError(t, second.Load(ctx))

	first.Add("https://example.com/first")
	second.Add("https://example.com/second")
	require.NoError(t, first.Save(ctx))
	require.NoError(t, second.Save(ctx))

	members, err := srv.Members(DefaultRedisKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://example.com/first", "https://example.com/second"}, members)

	// a second save with nothing new leaves the set alone
	require.NoError(t, first.Save(ctx))
	members, err = srv.Members(DefaultRedisKey)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRedisLedger_Clear(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	l := NewRedisLedger(srv.Addr(), "")
	defer l.Close()
	l.Add("https://example.com/a")
	require.NoError(t, l.Save(ctx))
	require.True(t, srv.Exists(DefaultRedisKey))

	require.NoError(t, l.Clear(ctx))
	assert.Zero(t, l.Len())
	assert.False(t, srv.Exists(DefaultRedisKey))

	require.NoError(t, l.Save(ctx))
	assert.False(t, srv.Exists(DefaultRedisKey), "cleared URLs are not written back")
}

func TestRedisLedger_Unreachable(t *testing.T) {
	l := NewRedisLedger("127.0.0.1:1", "")
	defer l.Close()
	assert.Equal(t, DefaultRedisKey, l.key)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, l.Load(ctx))

	l.Add("https://example.com/a")
	assert.True(t, l.Contains("https://example.com/a"))
	assert.Error(t, l.Save(ctx))
}
