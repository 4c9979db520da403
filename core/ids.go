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
	"strconv"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ChunkNamespace is the UUID namespace chunk identifiers are derived in.
var ChunkNamespace = uuid.MustParse("12345678-1234-5678-1234-123456789abc")

// ChunkID derives the stable identifier of the chunk at index within the page at url.
// The same (url, index) pair always yields the same UUIDv5 string.
func ChunkID(url string, index int) string {
	return uuid.NewSHA1(ChunkNamespace, []byte(url+"-"+strconv.Itoa(index))).String()
}

// IsValidID reports whether id is in the store's key format (a UUID).
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ContentKey returns a 256-bit BLAKE2b digest of text, used as a cache key.
func ContentKey(text string) [32]byte {
	return blake2b.Sum256([]byte(text))
}
