// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for store operations.
var (
	tracer = otel.Tracer("casefile.store")
	meter  = otel.Meter("casefile.store")
)

// Metrics for store operations.
var (
	storeHits         metric.Int64Counter
	storeMisses       metric.Int64Counter
	storeFetches      metric.Int64Counter
	storeFailures     metric.Int64Counter
	storeEvictions    metric.Int64Counter
	storeFetchLatency metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		storeHits, err = meter.Int64Counter(
			"entity_store_hits_total",
			metric.WithDescription("Total number of store hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeMisses, err = meter.Int64Counter(
			"entity_store_misses_total",
			metric.WithDescription("Total number of store misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeFetches, err = meter.Int64Counter(
			"entity_store_fetches_total",
			metric.WithDescription("Total number of upstream fetches issued"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeFailures, err = meter.Int64Counter(
			"entity_store_failures_total",
			metric.WithDescription("Total number of fetches that failed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeEvictions, err = meter.Int64Counter(
			"entity_store_evictions_total",
			metric.WithDescription("Total number of records evicted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeFetchLatency, err = meter.Float64Histogram(
			"entity_store_fetch_duration_seconds",
			metric.WithDescription("Duration of upstream fetches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func storeAttr(name string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("store", name))
}

// recordHit records a store hit metric.
func recordHit(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	storeHits.Add(ctx, 1, storeAttr(name))
}

// recordMiss records a store miss metric.
func recordMiss(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	storeMisses.Add(ctx, 1, storeAttr(name))
}

// recordFetch records an issued upstream fetch.
func recordFetch(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	storeFetches.Add(ctx, 1, storeAttr(name))
}

// recordFailure records a failed upstream fetch.
func recordFailure(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	storeFailures.Add(ctx, 1, storeAttr(name))
}

// recordEviction records a record eviction.
func recordEviction(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	storeEvictions.Add(ctx, 1, storeAttr(name))
}

// recordFetchLatency records the duration of an upstream fetch.
func recordFetchLatency(ctx context.Context, name string, duration time.Duration, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	storeFetchLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("store", name),
			attribute.Bool("ok", ok),
		),
	)
}

// startSpan creates a span for a store operation.
func startSpan(ctx context.Context, name, operation, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Store."+operation,
		trace.WithAttributes(
			attribute.String("store", name),
			attribute.String("store.operation", operation),
			attribute.String("entity.id", id),
		),
	)
}

// setSpanHit sets the result attribute on a store span.
func setSpanHit(span trace.Span, hit bool) {
	span.SetAttributes(attribute.Bool("store.hit", hit))
}
