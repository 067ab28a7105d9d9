// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"time"

	"github.com/casefilehq/casefile/pkg/logging"
	"github.com/casefilehq/casefile/services/catalog/client"
)

// Entity kinds served by the catalog. The values double as URL path
// segments under /v1.
const (
	KindDocuments   = "documents"
	KindCollections = "collections"
	KindEntities    = "entities"
)

// warmKind maps a route kind to the singular key prefix used in the
// warm tier and by the upstream client.
var warmKind = map[string]string{
	KindDocuments:   "document",
	KindCollections: "collection",
	KindEntities:    "entity",
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// UpstreamURL is the root of the upstream archive API. Required.
	UpstreamURL string

	// WarmDir enables the persistent warm tier at the given directory.
	// Empty disables the warm tier unless WarmInMemory is set.
	WarmDir string

	// WarmInMemory runs the warm tier in memory. Useful for testing.
	WarmInMemory bool

	// WarmTTL is the lifetime of a warm entry. Zero means the warm
	// tier default.
	WarmTTL time.Duration

	// MaxEntries bounds each hot store. Zero means unbounded.
	MaxEntries int

	// FetchTimeout bounds a single upstream fetch. Zero disables the
	// per-fetch deadline.
	FetchTimeout time.Duration

	// RateLimit is the sustained upstream request rate in requests per
	// second. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst allowance when RateLimit is set.
	RateBurst int

	// HTTPClient overrides the upstream transport. Useful for testing.
	HTTPClient client.HTTPClient

	// Logger defaults to logging.Default.
	Logger *logging.Logger
}

// DefaultServiceConfig returns production defaults; UpstreamURL must
// still be set by the caller.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		FetchTimeout: 30 * time.Second,
	}
}

// StateResponse is the non-blocking state report for one id.
type StateResponse struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	State          string `json:"state"`
	Error          string `json:"error,omitempty"`
	FetchedAtMilli int64  `json:"fetched_at_milli,omitempty"`
}

// WatchEvent is one state transition delivered over a watch socket.
type WatchEvent struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	State          string `json:"state"`
	Error          string `json:"error,omitempty"`
	FetchedAtMilli int64  `json:"fetched_at_milli,omitempty"`
}

// StoreStats is the per-store counter snapshot exposed on the stats
// endpoint.
type StoreStats struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Fetches   int64   `json:"fetches"`
	Failures  int64   `json:"failures"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// StatsResponse aggregates counters across all hot stores.
type StatsResponse struct {
	Stores map[string]StoreStats `json:"stores"`
}
