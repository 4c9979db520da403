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

package badger

import (
	"encoding/binary"
)

// Every key is "<kind>:<collection>:" followed by the record part, so one
// collection can be dropped by prefix without touching another.
const (
	metaPrefix   = "meta"
	chunkPrefix  = "chunk"
	vectorPrefix = "vec"
	urlPrefix    = "url"

	// urlTerminator separates the URL from the index in URL index keys.
	urlTerminator = 0x00
)

func collectionPrefix(kind, collection string) []byte {
	return []byte(kind + ":" + collection + ":")
}

// makeDimensionKey holds the collection's vector length.
func makeDimensionKey(collection string) []byte {
	return append(collectionPrefix(metaPrefix, collection), "dim"...)
}

// makeChunkKey holds the chunk payload.
func makeChunkKey(collection, id string) []byte {
	return append(collectionPrefix(chunkPrefix, collection), id...)
}

// makeVectorKey holds the chunk's embedding.
func makeVectorKey(collection, id string) []byte {
	return append(collectionPrefix(vectorPrefix, collection), id...)
}

// makePartialURLKey is the scan prefix for all chunks of url.
// Format: prefix:url\x00
func makePartialURLKey(collection, url string) []byte {
	key := append(collectionPrefix(urlPrefix, collection), url...)
	return append(key, urlTerminator)
}

// makeURLKey indexes a chunk by URL and position.
// Format: prefix:url\x00index(4 bytes BE)id
// The big-endian index makes a prefix scan return chunks in source order.
func makeURLKey(collection, url string, index int, id string) []byte {
	key := makePartialURLKey(collection, url)
	key = binary.BigEndian.AppendUint32(key, uint32(index))
	return append(key, id...)
}

// collectionPrefixes lists every key prefix owned by a collection.
func collectionPrefixes(collection string) [][]byte {
	return [][]byte{
		collectionPrefix(metaPrefix, collection),
		collectionPrefix(chunkPrefix, collection),
		collectionPrefix(vectorPrefix, collection),
		collectionPrefix(urlPrefix, collection),
	}
}
