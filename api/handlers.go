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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/docbot/core"
	"github.com/poiesic/docbot/ingestion"
	"github.com/poiesic/docbot/search"
)

// Answers returned by /chat when retrieval finds nothing usable.
const (
	noResultsAnswer   = "I couldn't find any relevant information for your question. Please try rephrasing it."
	noCitationsAnswer = "I couldn't determine which sources are relevant to your question. Please try rephrasing it."
)

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// SearchHit is one ranked result.
type SearchHit struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Index      int     `json:"index"`
	Total      int     `json:"total"`
	Similarity float32 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// DocumentChunk is one chunk of a document.
type DocumentChunk struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Document is the body of GET /documents.
type Document struct {
	URL    string          `json:"url"`
	Title  string          `json:"title"`
	Chunks []DocumentChunk `json:"chunks"`
}

// Health is the body of GET /health.
type Health struct {
	Status    string `json:"status"`
	Chunks    int    `json:"chunks"`
	Dimension int    `json:"dimension"`
	Ingesting bool   `json:"ingesting"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	store := s.searcher.Store()
	count, err := store.Count(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "err", err)
		s.respondWithJSON(w, http.StatusServiceUnavailable, Health{Status: "unhealthy"})
		return
	}
	s.respondWithJSON(w, http.StatusOK, Health{
		Status:    "ok",
		Chunks:    count,
		Dimension: store.Dimension(),
		Ingesting: s.jobs.Running(),
	})
}

func (s *Server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Start(r.Context())
	switch {
	case errors.Is(err, ingestion.ErrJobRunning), errors.Is(err, ingestion.ErrResetInProgress):
		s.respondWithError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("failed to start ingestion", "err", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not start ingestion")
	default:
		w.Header().Set("Location", "/ingest/"+job.ID)
		s.respondWithJSON(w, http.StatusAccepted, job)
	}
}

func (s *Server) handleLatestJob(w http.ResponseWriter, _ *http.Request) {
	job, ok := s.jobs.Latest()
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "no ingestion job has run")
		return
	}
	s.respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	err := s.jobs.Reset(r.Context())
	switch {
	case errors.Is(err, ingestion.ErrJobRunning), errors.Is(err, ingestion.ErrResetInProgress):
		s.respondWithError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("failed to reset store", "err", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not reset store")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := s.searcher.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.respondWithSearchError(w, err)
		return
	}

	hits := make([]SearchHit, len(results))
	for i, res := range results {
		hits[i] = SearchHit{
			ID:         res.Chunk.ID,
			Content:    res.Chunk.Content,
			URL:        res.Chunk.URL,
			Title:      res.Chunk.Title,
			Index:      res.Chunk.Index,
			Total:      res.Chunk.Total,
			Similarity: res.Similarity,
			Rank:       res.Rank,
		}
	}
	s.respondWithJSON(w, http.StatusOK, hits)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.respondWithError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	chunks, err := s.searcher.Document(r.Context(), url)
	if err != nil {
		s.logger.Error("failed to fetch document", "url", url, "err", err)
		s.respondWithError(w, http.StatusInternalServerError, "could not retrieve document")
		return
	}
	if len(chunks) == 0 {
		s.respondWithError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, newDocument(url, chunks))
}

func newDocument(url string, chunks []*core.Chunk) Document {
	doc := Document{URL: url, Chunks: make([]DocumentChunk, len(chunks))}
	for i, c := range chunks {
		if doc.Title == "" {
			doc.Title = c.Title
		}
		doc.Chunks[i] = DocumentChunk{ID: c.ID, Content: c.Content, Metadata: c.Metadata()}
	}
	return doc
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.answerer == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "chat is not configured")
		return
	}
	var req search.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.answerer.Chat(r.Context(), req)
	switch {
	case errors.Is(err, search.ErrNoResults):
		resp = &search.ChatResponse{Answer: noResultsAnswer, Citations: []search.Citation{}, Query: req.Query}
	case errors.Is(err, search.ErrNoCitations):
		resp = &search.ChatResponse{Answer: noCitationsAnswer, Citations: []search.Citation{}, Query: req.Query}
	case err != nil:
		s.respondWithSearchError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) respondWithSearchError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrInvalidQuery) {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("request failed", "err", err)
	s.respondWithError(w, http.StatusBadGateway, "upstream service failed")
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
