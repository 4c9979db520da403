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

package core

import (
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - Content must not be blank
//   - 0 <= Index < Total
//   - ID must be a UUID
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyURL)
	}

	if strings.TrimSpace(chunk.Content) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.Index < 0 || chunk.Index >= chunk.Total {
		return fmt.Errorf("%w: %w: index %d, total %d", ErrInvalidChunk, ErrInvalidIndex, chunk.Index, chunk.Total)
	}

	if !IsValidID(chunk.ID) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidChunk, ErrInvalidID, chunk.ID)
	}

	return nil
}

// ValidatePage validates a Page according to domain rules.
// Text length thresholds are enforced by the crawler and chunker, not here.
func ValidatePage(page *Page) error {
	if page == nil {
		return fmt.Errorf("%w: page is nil", ErrInvalidPage)
	}

	if page.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPage, ErrEmptyURL)
	}

	if page.Depth < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPage, ErrNegativeDepth)
	}

	return nil
}
