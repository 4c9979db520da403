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

// Package metrics holds the Prometheus collectors shared by the crawler,
// the ingestion pipeline and the HTTP front end.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Crawl outcomes used as the "outcome" label of PagesTotal.
const (
	OutcomeEmitted     = "emitted"
	OutcomeBadStatus   = "bad_status"
	OutcomeNotHTML     = "not_html"
	OutcomeTooShort    = "too_short"
	OutcomeFetchError  = "fetch_error"
	OutcomeDisallowed  = "robots_disallowed"
	OutcomeOverBudget  = "over_budget"
	OutcomeSkippedSeen = "skipped_seen"
)

var (
	PagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbot_crawler_pages_total",
			Help: "URLs processed by the crawler, by outcome.",
		},
		[]string{"outcome"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docbot_crawler_fetch_duration_seconds",
			Help:    "Duration of page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docbot_crawler_queue_depth",
			Help: "Current number of (url, depth) entries in the frontier.",
		},
	)

	ChunksIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docbot_ingestion_chunks_total",
			Help: "Chunks embedded and written to the vector store.",
		},
	)

	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbot_ingestion_flushes_total",
			Help: "Embed+upsert flushes, by result.",
		},
		[]string{"result"},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docbot_ingestion_flush_duration_seconds",
			Help:    "Duration of embed+upsert flushes.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbot_ingestion_jobs_total",
			Help: "Ingestion jobs by terminal status.",
		},
		[]string{"status"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docbot_search_requests_total",
			Help: "Search requests, by result.",
		},
		[]string{"result"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docbot_search_duration_seconds",
			Help:    "Duration of search requests including query embedding.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
