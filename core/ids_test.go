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
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkID_Deterministic(t *testing.T) {
	id1 := ChunkID("https://handbook.gitlab.com/values/", 3)
	id2 := ChunkID("https://handbook.gitlab.com/values/", 3)

	assert.Equal(t, id1, id2)
	assert.True(t, IsValidID(id1))
}

func TestChunkID_Different(t *testing.T) {
	url := "https://handbook.gitlab.com/values/"

	assert.NotEqual(t, ChunkID(url, 0), ChunkID(url, 1))
	assert.NotEqual(t, ChunkID(url, 0), ChunkID(url+"x", 0))
}

func TestChunkID_IsVersion5(t *testing.T) {
	parsed, err := uuid.Parse(ChunkID("https://example.com/", 0))
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(5), parsed.Version())
	assert.Equal(t, uuid.NewSHA1(ChunkNamespace, []byte("https://example.com/-0")), parsed)
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "uuid", id: "12345678-1234-5678-1234-123456789abc", want: true},
		{name: "empty", id: "", want: false},
		{name: "free text", id: "page-1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidID(tt.id))
		})
	}
}

func TestContentKey(t *testing.T) {
	assert.Equal(t, ContentKey("hello"), ContentKey("hello"))
	assert.NotEqual(t, ContentKey("hello"), ContentKey("hello "))
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
}
