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
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/poiesic/docbot/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.AnswerGenerator using OpenAI-compatible chat APIs.
type Generator struct {
	config *ai.Config
	closed *atomic.Bool

	once    sync.Once
	client  llms.Model
	initErr error

	logger *slog.Logger
}

var _ ai.AnswerGenerator = (*Generator)(nil)

func newGenerator(config *ai.Config, closed *atomic.Bool) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		config: config,
		closed: closed,
		logger: slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided configuration.
func NewGenerator(config *ai.Config) (ai.AnswerGenerator, error) {
	return newGenerator(config, &atomic.Bool{})
}

func (g *Generator) init() error {
	if g.closed.Load() {
		return ai.ErrProviderClosed
	}
	g.once.Do(func() {
		g.client, g.initErr = openai.New(
			openai.WithBaseURL(g.config.GeneratorHost),
			openai.WithToken(g.config.APIToken),
			openai.WithModel(g.config.GeneratorModel),
		)
	})
	return g.initErr
}

// Generate sends prompt as a single user message and returns the completion text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.init(); err != nil {
		return "", err
	}

	g.logger.Debug("generating answer", "prompt_length", len(prompt))

	answer, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, llms.WithTemperature(0.1))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return "", err
	}
	return answer, nil
}
