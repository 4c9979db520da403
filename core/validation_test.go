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
	"errors"
	"testing"
)

func TestValidateChunk(t *testing.T) {
	validID := ChunkID("https://example.com/", 0)

	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr error
	}{
		{
			name: "valid chunk",
			chunk: &Chunk{
				ID:      validID,
				URL:     "https://example.com/",
				Content: "Some content",
				Index:   0,
				Total:   2,
			},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			wantErr: ErrInvalidChunk,
		},
		{
			name: "empty url",
			chunk: &Chunk{
				ID:      validID,
				Content: "Some content",
				Total:   1,
			},
			wantErr: ErrEmptyURL,
		},
		{
			name: "blank content",
			chunk: &Chunk{
				ID:      validID,
				URL:     "https://example.com/",
				Content: "   \n",
				Total:   1,
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "index equals total",
			chunk: &Chunk{
				ID:      validID,
				URL:     "https://example.com/",
				Content: "Some content",
				Index:   2,
				Total:   2,
			},
			wantErr: ErrInvalidIndex,
		},
		{
			name: "negative index",
			chunk: &Chunk{
				ID:      validID,
				URL:     "https://example.com/",
				Content: "Some content",
				Index:   -1,
				Total:   2,
			},
			wantErr: ErrInvalidIndex,
		},
		{
			name: "malformed id",
			chunk: &Chunk{
				ID:      "chunk-1",
				URL:     "https://example.com/",
				Content: "Some content",
				Total:   1,
			},
			wantErr: ErrInvalidID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidChunk) {
				t.Errorf("ValidateChunk() error = %v, want wrapped %v", err, ErrInvalidChunk)
			}
		})
	}
}

func TestValidatePage(t *testing.T) {
	tests := []struct {
		name    string
		page    *Page
		wantErr error
	}{
		{name: "valid page", page: &Page{URL: "https://example.com/", Depth: 1}},
		{name: "nil page", page: nil, wantErr: ErrInvalidPage},
		{name: "empty url", page: &Page{}, wantErr: ErrEmptyURL},
		{name: "negative depth", page: &Page{URL: "https://example.com/", Depth: -1}, wantErr: ErrNegativeDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePage(tt.page)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePage() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChunk_Metadata(t *testing.T) {
	c := &Chunk{URL: "https://example.com/", Title: "Example", Index: 2, Total: 5}
	md := c.Metadata()

	if md["url"] != "https://example.com/" || md["title"] != "Example" || md["index"] != 2 || md["total"] != 5 {
		t.Errorf("Metadata() = %v", md)
	}
}
