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

package openai

import (
	"context"
	"testing"

	"github.com/poiesic/docbot/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_InvalidConfig(t *testing.T) {
	cfg := ai.DefaultConfig()
	cfg.EmbeddingModel = ""

	_, err := NewProvider(cfg)
	assert.Error(t, err)
}

func TestNewProvider_NormalizesHosts(t *testing.T) {
	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "http://localhost:11434/v1", p.config.EmbeddingHost)
	assert.NotNil(t, p.Embedder())
	assert.NotNil(t, p.Generator())
}

func TestProvider_ClosedRejectsCalls(t *testing.T) {
	p, err := NewProvider(ai.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Embedder().EmbedText(context.Background(), "text")
	assert.ErrorIs(t, err, ai.ErrProviderClosed)

	_, err = p.Generator().Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ai.ErrProviderClosed)
}

func TestEmbedder_EmptyInputSkipsInit(t *testing.T) {
	e, err := NewEmbedder(ai.DefaultConfig())
	require.NoError(t, err)

	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Nil(t, e.(*Embedder).embedder)
}
