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

// Package ai provides abstractions for the AI services docbot depends on.
//
// The package defines the boundaries the ingestion core and the search
// service talk to, so neither depends on a particular model server:
//
//   - Embedder: maps ordered text batches to fixed-dimension vectors
//   - AnswerGenerator: turns a prompt into generated text
//   - AIProvider: owns both services and their lifecycle
//
// # Batching and caching
//
// Batching policy lives here rather than in callers. NewBatchEmbedder splits
// requests into model-sized batches while preserving global order, returns an
// empty result for an empty input without calling the model, and normalizes
// vectors to unit length for cosine-similarity stores. NewCachedEmbedder keeps
// recent single-text embeddings (search queries) in an LRU.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible services via langchaingo
//   - ai/mock: deterministic test doubles
//
// Public production constructors return interfaces; mock constructors return
// concrete types so tests can inspect call counts and inject behavior.
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embedder := ai.NewBatchEmbedder(provider.Embedder(), 32, true)
//	vectors, err := embedder.EmbedTexts(ctx, []string{"first", "second"})
package ai
