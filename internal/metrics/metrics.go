// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics provides Prometheus metrics for stream consumption and
// transcript persistence.
//
// Every method is safe on a nil *Metrics, so components can be built without
// metrics in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stream outcomes.
const (
	OutcomeCompleted     = "completed"
	OutcomeCancelled     = "cancelled"
	OutcomeFailedAcquire = "failed_acquire"
	OutcomeReadError     = "read_error"
)

// Metrics holds all Prometheus metrics for streamchat.
type Metrics struct {
	registry *prometheus.Registry

	// Stream metrics
	StreamsTotal      *prometheus.CounterVec
	StreamDuration    prometheus.Histogram
	StreamChunks      prometheus.Counter
	StreamBytes       prometheus.Counter
	StreamsInFlight   prometheus.Gauge
	FirstChunkLatency prometheus.Histogram

	// Store metrics
	StoreOperationsTotal *prometheus.CounterVec
	StoreRecordsSkipped  prometheus.Counter
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.StreamsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamchat_streams_total",
			Help: "Total number of consumed response streams by outcome",
		},
		[]string{"outcome"},
	)

	m.StreamDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamchat_stream_duration_seconds",
			Help:    "Time from stream acquisition to termination",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	m.FirstChunkLatency = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamchat_first_chunk_seconds",
			Help:    "Time from stream acquisition to the first published chunk",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.StreamChunks = f.NewCounter(
		prometheus.CounterOpts{
			Name: "streamchat_stream_chunks_total",
			Help: "Total number of chunks read from response streams",
		},
	)

	m.StreamBytes = f.NewCounter(
		prometheus.CounterOpts{
			Name: "streamchat_stream_decoded_bytes_total",
			Help: "Total number of decoded bytes published from response streams",
		},
	)

	m.StreamsInFlight = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamchat_streams_in_flight",
			Help: "Number of response streams currently being consumed",
		},
	)

	m.StoreOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamchat_store_operations_total",
			Help: "Total number of transcript store operations",
		},
		[]string{"operation", "status"},
	)

	m.StoreRecordsSkipped = f.NewCounter(
		prometheus.CounterOpts{
			Name: "streamchat_store_records_skipped_total",
			Help: "History records dropped while cleaning persisted state",
		},
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StreamStarted marks a stream as in flight.
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.StreamsInFlight.Inc()
}

// RecordChunk counts one published chunk of n decoded bytes.
func (m *Metrics) RecordChunk(n int) {
	if m == nil {
		return
	}
	m.StreamChunks.Inc()
	m.StreamBytes.Add(float64(n))
}

// RecordFirstChunk observes the latency to the first chunk.
func (m *Metrics) RecordFirstChunk(d time.Duration) {
	if m == nil {
		return
	}
	m.FirstChunkLatency.Observe(d.Seconds())
}

// StreamFinished records the outcome and duration of a stream.
func (m *Metrics) StreamFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.StreamsInFlight.Dec()
	m.StreamsTotal.WithLabelValues(outcome).Inc()
	m.StreamDuration.Observe(d.Seconds())
}

// RecordStoreOp counts a store operation.
func (m *Metrics) RecordStoreOp(op string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(op, status).Inc()
}

// RecordSkipped counts history records dropped during cleaning.
func (m *Metrics) RecordSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StoreRecordsSkipped.Add(float64(n))
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
