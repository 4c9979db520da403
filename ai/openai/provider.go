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
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/poiesic/docbot/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It owns one embedder and one generator for the lifetime of the process.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Generator
	closed    atomic.Bool
	logger    *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns *Provider so callers can Init eagerly; it satisfies ai.AIProvider.
func NewProvider(config *ai.Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "openai-provider"),
	}

	var err error
	if p.embedder, err = newEmbedder(config, &p.closed); err != nil {
		return nil, err
	}
	if p.generator, err = newGenerator(config, &p.closed); err != nil {
		return nil, err
	}
	return p, nil
}

// Init builds both model handles now instead of on first use.
func (p *Provider) Init() error {
	return errors.Join(p.embedder.init(), p.generator.init())
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the answer generation service.
func (p *Provider) Generator() ai.AnswerGenerator {
	return p.generator
}

// Close marks the provider closed. The underlying HTTP clients hold no
// resources that need explicit release.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	p.closed.Store(true)
	return nil
}
