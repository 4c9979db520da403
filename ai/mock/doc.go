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

// Package mock provides test doubles for the ai package interfaces.
//
// Mocks return deterministic results so tests do not need a model server:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("model offline")
//	}
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors seeded from an FNV hash of the text, so equal
//     texts embed identically and unrelated texts are close to orthogonal
//   - MockGenerator: echoes a short, deterministic answer
//   - MockProvider: aggregates both
package mock
