// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "time"

// State describes the lifecycle of a cached record.
//
// Records move NotRequested -> Fetching -> Loaded or Failed. A Failed
// record is re-fetchable; a Loaded record is terminal until an explicit
// Refresh.
type State int

const (
	// StateNotRequested means the id has never been fetched.
	StateNotRequested State = iota

	// StateFetching means a fetch is in flight for the id.
	StateFetching

	// StateLoaded means the last fetch succeeded and Value is set.
	StateLoaded

	// StateFailed means the last fetch failed and Err is set.
	StateFailed
)

// String returns the lowercase wire name of the state.
func (s State) String() string {
	switch s {
	case StateNotRequested:
		return "not_requested"
	case StateFetching:
		return "fetching"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is the per-id cache entry.
//
// Exactly one of Value/Err is meaningful, selected by State. Records
// are plain values; readers get a snapshot and never observe a
// half-written transition.
type Record[T any] struct {
	// State is the lifecycle state of this record.
	State State

	// Value is the fetched payload. Only valid when State is StateLoaded.
	Value T

	// Err is the fetch failure. Only valid when State is StateFailed.
	// The error identity from the fetch function is preserved verbatim.
	Err error

	// FetchedAtMilli is when the record reached a terminal state,
	// in Unix milliseconds. Zero while NotRequested or Fetching.
	FetchedAtMilli int64
}

// Event is a state transition published to subscribers.
type Event[T any] struct {
	// ID is the entity id the transition belongs to.
	ID string

	// Record is the record snapshot after the transition.
	Record Record[T]
}

// Stats contains counters for one store instance.
type Stats struct {
	// Entries is the number of records currently held.
	Entries int

	// Hits is the number of Get/Fetch calls answered from a known record.
	Hits int64

	// Misses is the number of Get calls for unseen ids.
	Misses int64

	// Fetches is the number of network round trips issued.
	Fetches int64

	// Failures is the number of fetches that ended in StateFailed.
	Failures int64

	// Evictions is the number of records evicted under WithMaxEntries.
	Evictions int64
}

// HitRate returns the hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Options configures a Store.
type Options struct {
	// Name labels the store in metrics and spans ("documents",
	// "collections", ...).
	Name string

	// MaxEntries bounds the number of retained records. Zero means
	// unbounded: records accumulate for the lifetime of the session.
	MaxEntries int

	// SubscriberBuffer is the channel capacity handed to subscribers.
	SubscriberBuffer int

	// FetchTimeout bounds a single fetch round trip. Zero disables
	// the per-fetch deadline.
	FetchTimeout time.Duration
}

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		Name:             "entities",
		SubscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Default configuration values.
const (
	// DefaultSubscriberBuffer is the per-subscriber channel capacity.
	DefaultSubscriberBuffer = 16
)

// Option is a functional option for configuring a Store.
type Option func(*Options)

// WithName sets the store label used in metrics and spans.
func WithName(name string) Option {
	return func(o *Options) {
		if name != "" {
			o.Name = name
		}
	}
}

// WithMaxEntries bounds the number of retained records.
//
// Eviction is LRU and skips records that are currently Fetching.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// WithSubscriberBuffer sets the subscriber channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.SubscriberBuffer = n
		}
	}
}

// WithFetchTimeout bounds a single fetch round trip.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.FetchTimeout = d
		}
	}
}
