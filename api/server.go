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

// Package api is the HTTP front end: ingestion jobs, search, document
// retrieval, chat and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/docbot/ingestion"
	"github.com/poiesic/docbot/metrics"
	"github.com/poiesic/docbot/search"
)

// DefaultRequestTimeout bounds every request handled by the router.
const DefaultRequestTimeout = 5 * time.Minute

var (
	// ErrJobsRequired is returned when no job runner is provided.
	ErrJobsRequired = errors.New("job runner required")

	// ErrSearcherRequired is returned when no searcher is provided.
	ErrSearcherRequired = errors.New("searcher required")
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	jobs           *ingestion.JobRunner
	searcher       *search.Searcher
	answerer       *search.Answerer
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	router         http.Handler
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithAnswerer enables POST /chat.
func WithAnswerer(answerer *search.Answerer) Option {
	return func(s *Server) error {
		s.answerer = answerer
		return nil
	}
}

// WithRequestTimeout sets the per-request deadline.
// Default is DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d > 0 {
			s.requestTimeout = d
		}
		return nil
	}
}

// WithHTTPTimeouts sets the read and write timeouts of the listener.
// Zero leaves a timeout unset.
func WithHTTPTimeouts(read, write time.Duration) Option {
	return func(s *Server) error {
		if read < 0 || write < 0 {
			return fmt.Errorf("http timeouts must not be negative")
		}
		s.readTimeout = read
		s.writeTimeout = write
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "api")
		return nil
	}
}

// NewServer creates a server. Without WithAnswerer, /chat answers 503.
func NewServer(jobs *ingestion.JobRunner, searcher *search.Searcher, opts ...Option) (*Server, error) {
	if jobs == nil {
		return nil, ErrJobsRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	s := &Server{
		jobs:           jobs,
		searcher:       searcher,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.router = s.setupRouter()
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/health", s.handleHealth)

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/", s.handleStartIngest)
		r.Get("/", s.handleLatestJob)
		r.Delete("/", s.handleReset)
		r.Get("/{id}", s.handleGetJob)
	})

	r.Post("/search", s.handleSearch)
	r.Get("/documents", s.handleDocument)
	r.Post("/chat", s.handleChat)

	return r
}

// logRequests logs one line per request through slog.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
