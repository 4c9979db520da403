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

// Package ingestion turns crawled pages into stored, embedded chunks.
//
// A Pipeline runs the crawler and a single consumer concurrently, connected by
// a bounded channel. The consumer skips pages already in the visited-URL
// ledger, chunks the rest, and flushes chunks to the embedder and vector store
// in batches. A URL is added to the ledger only after the batch holding its
// chunks was stored, so a failed run never records pages whose content is
// missing from the store.
//
// A JobRunner runs a Pipeline in the background, one job at a time, and
// exposes job status for the HTTP API.
package ingestion
