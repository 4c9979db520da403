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

package ingestion

import "errors"

var (
	// ErrCrawlerRequired is returned when no page source is provided.
	ErrCrawlerRequired = errors.New("crawler required")

	// ErrRunnerRequired is returned when a JobRunner has nothing to run.
	ErrRunnerRequired = errors.New("runner required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when no vector store is provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrLedgerRequired is returned when no ledger is provided.
	ErrLedgerRequired = errors.New("ledger required")

	// ErrAlreadyRunning is returned by Run while another run is in flight.
	ErrAlreadyRunning = errors.New("pipeline already running")

	// ErrEmbeddingFailed wraps an embedding error that aborted a run.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrStoreFailed wraps a store write error that aborted a run.
	ErrStoreFailed = errors.New("store write failed")

	// ErrLedgerFailed wraps a ledger load or save error.
	ErrLedgerFailed = errors.New("ledger failed")

	// ErrJobRunning is returned when a job is started or the store reset
	// while a job is in flight.
	ErrJobRunning = errors.New("an ingestion job is already running")

	// ErrResetInProgress is returned when a job is started or another reset
	// requested while the store is being cleared.
	ErrResetInProgress = errors.New("a store reset is in progress")

	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrRunnerClosed is returned by a JobRunner after Close.
	ErrRunnerClosed = errors.New("job runner closed")
)
