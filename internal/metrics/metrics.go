// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package metrics exposes Prometheus instrumentation for the recommendation
// pipeline, the DuckDB store, the event consumer and the HTTP surface.
//
// Metrics are registered on the default registry through promauto and served
// at /metrics by the api package.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blogrec_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Refresh pipeline
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blogrec_refresh_duration_seconds",
			Help:    "Duration of recommendation refresh cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
	)

	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_refresh_total",
			Help: "Refresh cycles by result",
		},
		[]string{"result"}, // "refreshed", "noop", "busy", "error"
	)

	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogrec_refresh_last_success_timestamp",
			Help: "Unix timestamp of the last refresh that swapped the cache",
		},
	)

	ModelEpochError = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogrec_model_epoch_error",
			Help: "Mean squared reconstruction error of the last training epoch",
		},
	)

	CheckpointOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_checkpoint_operations_total",
			Help: "Checkpoint store operations by kind and result",
		},
		[]string{"op", "result"},
	)

	// Ratings ledger
	RatingUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_rating_upserts_total",
			Help: "Rating upserts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// Content similarity
	SimilarityRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blogrec_similarity_rebuilds_total",
			Help: "Total number of similarity matrix rebuilds",
		},
	)

	SimilarityItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blogrec_similarity_items",
			Help: "Number of items in the current similarity snapshot",
		},
	)

	// Recommendation cache
	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_cache_reads_total",
			Help: "Recommendation cache reads by hit",
		},
		[]string{"hit"},
	)

	// Action events
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_events_consumed_total",
			Help: "Action events consumed by result",
		},
		[]string{"result"}, // "applied", "duplicate", "invalid", "error"
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_events_published_total",
			Help: "Action events published by result",
		},
		[]string{"result"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogrec_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blogrec_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordRefresh records one refresh attempt. result is one of refreshed,
// noop, busy or error.
func RecordRefresh(result string, duration time.Duration) {
	RefreshTotal.WithLabelValues(result).Inc()
	if result == "busy" {
		return
	}
	RefreshDuration.Observe(duration.Seconds())
	if result == "refreshed" {
		RefreshLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordEpochError sets the last epoch's reconstruction error.
func RecordEpochError(mse float64) {
	ModelEpochError.Set(mse)
}

// RecordCheckpoint records a checkpoint save, load or prune.
func RecordCheckpoint(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CheckpointOperations.WithLabelValues(op, result).Inc()
}

// RecordRatingUpsert records a ledger upsert outcome.
func RecordRatingUpsert(action, outcome string) {
	RatingUpserts.WithLabelValues(action, outcome).Inc()
}

// RecordSimilarityRebuild records a similarity rebuild over n items.
func RecordSimilarityRebuild(n int) {
	SimilarityRebuilds.Inc()
	SimilarityItems.Set(float64(n))
}

// RecordCacheRead records a recommendation cache lookup.
func RecordCacheRead(hit bool) {
	CacheReads.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// RecordEventConsumed records the result of handling one action event.
func RecordEventConsumed(result string) {
	EventsConsumed.WithLabelValues(result).Inc()
}

// RecordEventPublished records a publish attempt.
func RecordEventPublished(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
