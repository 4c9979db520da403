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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_PushSkipsSeen(t *testing.T) {
	f := newFrontier(10, 10, map[string]struct{}{"http://x/old": {}})

	assert.False(t, f.push("http://x/old", 0))
	assert.True(t, f.push("http://x/new", 0))
	assert.False(t, f.push("http://x/new", 1), "an enqueued URL is seen")
	assert.True(t, f.isSeen("http://x/new"))
	assert.False(t, f.isSeen("http://x/other"))
}

func TestFrontier_Capacity(t *testing.T) {
	f := newFrontier(2, 10, nil)

	assert.True(t, f.push("http://x/1", 0))
	assert.True(t, f.push("http://x/2", 0))
	assert.False(t, f.push("http://x/3", 0))
	assert.False(t, f.isSeen("http://x/3"), "a dropped URL may be discovered again later")
}

func TestFrontier_NextAndIdle(t *testing.T) {
	f := newFrontier(10, 10, nil)
	f.push("http://x/1", 0)
	f.push("http://x/2", 1)

	e, res := f.next()
	require.Equal(t, pollEntry, res)
	assert.Equal(t, entry{url: "http://x/1", depth: 0}, e)

	e, res = f.next()
	require.Equal(t, pollEntry, res)
	assert.Equal(t, "http://x/2", e.url)

	_, res = f.next()
	assert.Equal(t, pollEmpty, res, "workers are still active")

	f.done()
	f.done()
	_, res = f.next()
	assert.Equal(t, pollExhausted, res)
}

func TestFrontier_BudgetDrainsQueue(t *testing.T) {
	f := newFrontier(10, 2, nil)
	f.push("http://x/1", 0)
	f.push("http://x/2", 0)
	f.push("http://x/3", 0)

	assert.True(t, f.commit())
	assert.True(t, f.commit())
	assert.False(t, f.commit())
	assert.Equal(t, 2, f.count())

	_, res := f.next()
	assert.Equal(t, pollBudget, res)
	assert.Empty(t, f.queue)
	assert.False(t, f.push("http://x/4", 0))
}

func TestFrontier_ReleaseReturnsBudget(t *testing.T) {
	f := newFrontier(10, 1, nil)
	require.True(t, f.commit())
	assert.False(t, f.commit())

	f.release()
	assert.Zero(t, f.count())
	assert.True(t, f.commit())
	assert.Equal(t, 1, f.count())
}
