// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wires OpenTelemetry metrics for the catalog.
//
// Metrics are exported through the Prometheus exporter, which
// registers with the default Prometheus registry; the scrape handler
// is exposed via MetricsHandler and mounted on /metrics.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ErrUnknownExporter indicates an unsupported MetricExporter value.
var ErrUnknownExporter = errors.New("unknown metric exporter")

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this service in metrics.
	ServiceName string

	// ServiceVersion is the build version attached to the resource.
	ServiceVersion string

	// Environment is the deployment environment ("dev", "prod").
	Environment string

	// MetricExporter selects the metric exporter: "prometheus" or "none".
	MetricExporter string
}

// DefaultConfig returns telemetry defaults for the catalog service.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "casefile-catalog",
		ServiceVersion: "dev",
		Environment:    "dev",
		MetricExporter: "prometheus",
	}
}

// metricsHandler stores the Prometheus scrape handler.
// Access via MetricsHandler().
var (
	metricsHandler   http.Handler
	metricsHandlerMu sync.RWMutex
)

// MetricsHandler returns the Prometheus scrape handler, or nil when
// the prometheus exporter is not active.
func MetricsHandler() http.Handler {
	metricsHandlerMu.RLock()
	defer metricsHandlerMu.RUnlock()
	return metricsHandler
}

// Init sets up the global MeterProvider.
//
// Returns a shutdown function that flushes and releases the provider.
//
// Thread Safety: call once at application startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	switch cfg.MetricExporter {
	case "none":
		return func(context.Context) error { return nil }, nil

	case "prometheus", "":
		// The OTel prometheus exporter registers as a collector with
		// the default prometheus registry, so promhttp.Handler() will
		// include our metrics.
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		metricsHandlerMu.Lock()
		metricsHandler = promhttp.Handler()
		metricsHandlerMu.Unlock()

		mp := metric.NewMeterProvider(
			metric.WithReader(exporter),
			metric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		return mp.Shutdown, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}
