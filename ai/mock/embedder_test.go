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

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()

	v1, err := m.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	vs, err := m.EmbedTexts(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)

	assert.Equal(t, v1, vs[0])
	assert.Len(t, v1, DefaultDimension)
	assert.InDelta(t, 1.0, dot(v1, v1), 1e-5)
	assert.Less(t, dot(vs[0], vs[1]), float32(0.5))
	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, 3, m.TextCount())
}

func TestMockEmbedder_Dimension(t *testing.T) {
	m := &MockEmbedder{Dimension: 8}

	v, err := m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	answer, err := p.Generator().Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Contains(t, answer, "mock answer")
	assert.Equal(t, "prompt", p.GetMockGenerator().LastPrompt())
	assert.NoError(t, p.Close())
}
