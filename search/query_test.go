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

package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanQuery(t *testing.T) {
	got, err := CleanQuery("  what   are\tthe\nvalues? ")
	require.NoError(t, err)
	assert.Equal(t, "what are the values?", got)

	got, err = CleanQuery("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	_, err = CleanQuery(" a ")
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = CleanQuery(strings.Repeat("é", MaxQueryLength))
	assert.NoError(t, err)

	_, err = CleanQuery(strings.Repeat("é", MaxQueryLength+1))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseIndices(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		n     int
		limit int
		want  []int
	}{
		{"plain list", "1, 3", 5, 0, []int{1, 3}},
		{"prose", "Citations [2] and [4] are relevant.", 5, 0, []int{2, 4}},
		{"out of range dropped", "0 6 2", 5, 0, []int{2}},
		{"repeats dropped", "3 3 1", 5, 0, []int{3, 1}},
		{"limit", "1 2 3", 5, 2, []int{1, 2}},
		{"nothing", "none of them", 5, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIndices(tt.text, tt.n, tt.limit))
		})
	}
}
