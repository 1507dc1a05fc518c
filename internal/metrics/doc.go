// Package metrics provides observability hooks for export and filter metrics.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// all components use NoopRecorder which implements the Recorder interface with
// no-op methods that inline to nothing at compile time.
//
// # Architecture
//
// The metrics system has three components:
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing (zero overhead)
//  3. PrometheusRecorder - Prometheus adapter, served by the daemon's /metrics
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	runner := pipeline.NewRunner(reg, store, cache, opts).
//		WithRecorder(metrics.NoopRecorder{})
//
// To enable metrics, swap NoopRecorder for a real implementation:
//
//	registry := prom.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(registry)
//
// This approach allows zero overhead when metrics are disabled, activation
// without code changes, and clean testing with a mock recorder.
package metrics
