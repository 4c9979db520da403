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

package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_ReusesVectors(t *testing.T) {
	inner := &recordingEmbedder{}
	c, err := NewCachedEmbedder(inner, 10)
	require.NoError(t, err)

	v1, err := c.EmbedText(context.Background(), "query")
	require.NoError(t, err)
	v2, err := c.EmbedText(context.Background(), "query")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, inner.batches, 1)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_BatchBypassesCache(t *testing.T) {
	inner := &recordingEmbedder{}
	c, err := NewCachedEmbedder(inner, 0)
	require.NoError(t, err)

	_, err = c.EmbedTexts(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []int{2}, inner.batches)
}
