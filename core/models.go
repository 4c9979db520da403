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
	"time"
)

// Page is a fetched, content-qualifying document produced by the crawler.
// It is immutable once emitted and consumed exactly once by the pipeline.
type Page struct {
	URL   string
	Depth int
	HTML  string
	Text  string
	Title string // empty when the page has no <title>
}

// Chunk is an order-indexed segment of a page's extracted text.
// Index and Total describe the position of the segment in the splitter's
// output before low-content segments were dropped, so gaps in Index are
// expected.
type Chunk struct {
	ID      string
	URL     string
	Title   string
	Content string
	Index   int
	Total   int
}

// Metadata returns the payload attributes stored alongside the chunk content.
func (c *Chunk) Metadata() map[string]any {
	return map[string]any{
		"url":   c.URL,
		"title": c.Title,
		"index": c.Index,
		"total": c.Total,
	}
}

// SearchResult is a chunk returned from a similarity query.
type SearchResult struct {
	Chunk      *Chunk
	Score      float32 // cosine similarity reported by the store
	Distance   float32 // 1 - Score
	Similarity float32 // max(0, 1 - Distance), filled in by the search service
	Rank       int     // 1-based, filled in by the search service
}

// IngestResult holds the aggregate counts of one ingestion run.
type IngestResult struct {
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
}

// JobStatus is the lifecycle state of a background ingestion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is a snapshot of a background ingestion job.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Error      string        `json:"error,omitempty"`
	Result     *IngestResult `json:"result,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  time.Time     `json:"started_at,omitzero"`
	FinishedAt time.Time     `json:"finished_at,omitzero"`
}
