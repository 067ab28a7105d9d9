// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store implements a normalized entity cache with per-id fetch
// status and fetch deduplication.
//
// The store keeps a flat map from entity id to a Record: NotRequested,
// Fetching, Loaded, or Failed. Reads are synchronous; fetches are
// asynchronous tasks deduplicated per id, so any number of callers
// asking for the same id while a fetch is in flight share exactly one
// network round trip and observe the same resolved record.
//
// The store owns its own lifecycle: fetches run against the store's
// session context, not the caller's, so a caller that stops waiting
// does not cancel the shared operation and the result is still applied
// for every other consumer.
package store

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc loads the payload for one id from the backing source.
//
// The context is the store's session context (possibly bounded by
// WithFetchTimeout), not an individual caller's.
type FetchFunc[T any] func(ctx context.Context, id string) (T, error)

// Store is a keyed cache of fetched entities with status tracking.
//
// Thread Safety:
//
//	Store is safe for concurrent use. The record map is guarded by an
//	RWMutex; subscriber registration by a second mutex; counters are
//	atomics.
type Store[T any] struct {
	fetchFn FetchFunc[T]
	options Options

	mu       sync.RWMutex
	records  map[string]Record[T]
	lru      *list.List               // ids, front = most recent; nil when unbounded
	lruIndex map[string]*list.Element // only when lru != nil

	flight singleflight.Group

	subMu   sync.RWMutex
	subs    map[uint64]chan Event[T]
	nextSub uint64
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc

	// Stats
	hits      int64
	misses    int64
	fetches   int64
	failures  int64
	evictions int64
}

// New creates a Store backed by the given fetch function.
//
// The store is live until Close is called; Close marks the end of the
// session and cancels any in-flight fetches.
func New[T any](fetch FetchFunc[T], opts ...Option) *Store[T] {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store[T]{
		fetchFn: fetch,
		options: options,
		records: make(map[string]Record[T]),
		subs:    make(map[uint64]chan Event[T]),
		ctx:     ctx,
		cancel:  cancel,
	}
	if options.MaxEntries > 0 {
		s.lru = list.New()
		s.lruIndex = make(map[string]*list.Element)
	}
	return s
}

// Get returns the current record for id without triggering a fetch.
//
// Unseen ids yield a NotRequested record.
func (s *Store[T]) Get(id string) Record[T] {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&s.misses, 1)
		recordMiss(s.ctx, s.options.Name)
		return Record[T]{State: StateNotRequested}
	}
	atomic.AddInt64(&s.hits, 1)
	recordHit(s.ctx, s.options.Name)
	return rec
}

// Fetch returns the record for id, loading it if necessary.
//
// Behavior:
//
//   - Loaded: returned immediately, no network call.
//   - Fetching: joins the in-flight operation; exactly one network
//     round trip is issued regardless of the number of callers.
//   - NotRequested or Failed: transitions the record to Fetching
//     (published to subscribers before the network call starts), runs
//     the fetch, and transitions to Loaded or Failed.
//
// The caller's context governs only the wait. If ctx is done before
// the fetch resolves, Fetch returns the current record together with
// ctx.Err(); the fetch itself continues and its result is applied to
// the store.
//
// A Failed record is returned together with its error. The error is
// the one produced by the fetch function, preserved verbatim.
func (s *Store[T]) Fetch(ctx context.Context, id string) (Record[T], error) {
	fctx, span := startSpan(s.ctx, s.options.Name, "Fetch", id)
	defer span.End()

	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if ok && rec.State == StateLoaded {
		atomic.AddInt64(&s.hits, 1)
		recordHit(fctx, s.options.Name)
		setSpanHit(span, true)
		return rec, nil
	}
	setSpanHit(span, false)

	return s.await(ctx, id, false)
}

// Refresh forces a new fetch for id even when the record is Loaded.
//
// If a fetch is already in flight for the id, Refresh joins it instead
// of starting a second one; the one-flight-per-id invariant holds for
// refreshes too.
func (s *Store[T]) Refresh(ctx context.Context, id string) (Record[T], error) {
	_, span := startSpan(s.ctx, s.options.Name, "Refresh", id)
	defer span.End()

	return s.await(ctx, id, true)
}

// await joins (or starts) the singleflight for id and waits for it.
func (s *Store[T]) await(ctx context.Context, id string, force bool) (Record[T], error) {
	ch := s.flight.DoChan(id, func() (interface{}, error) {
		return s.doFetch(id, force), nil
	})

	select {
	case res := <-ch:
		rec := res.Val.(Record[T])
		if rec.State == StateFailed {
			return rec, rec.Err
		}
		return rec, nil
	case <-ctx.Done():
		// The flight keeps running on the store's session context and
		// will update the record for other consumers.
		s.mu.RLock()
		rec := s.records[id]
		s.mu.RUnlock()
		return rec, ctx.Err()
	}
}

// doFetch runs inside the singleflight and performs the state machine
// transitions for one network round trip.
func (s *Store[T]) doFetch(id string, force bool) Record[T] {
	s.mu.Lock()
	if rec, ok := s.records[id]; ok && rec.State == StateLoaded && !force {
		// Another caller loaded the id between the fast-path check and
		// the flight starting.
		s.mu.Unlock()
		return rec
	}
	fetching := Record[T]{State: StateFetching}
	s.records[id] = fetching
	s.touchLocked(id)
	s.mu.Unlock()

	s.publish(id, fetching)
	atomic.AddInt64(&s.fetches, 1)
	recordFetch(s.ctx, s.options.Name)

	fctx := s.ctx
	if s.options.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(fctx, s.options.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	value, err := s.fetchFn(fctx, id)
	recordFetchLatency(s.ctx, s.options.Name, time.Since(start), err == nil)

	var rec Record[T]
	now := time.Now().UnixMilli()
	if err != nil {
		atomic.AddInt64(&s.failures, 1)
		recordFailure(s.ctx, s.options.Name)
		rec = Record[T]{State: StateFailed, Err: err, FetchedAtMilli: now}
	} else {
		rec = Record[T]{State: StateLoaded, Value: value, FetchedAtMilli: now}
	}

	s.mu.Lock()
	s.records[id] = rec
	s.touchLocked(id)
	s.evictLocked()
	s.mu.Unlock()

	s.publish(id, rec)
	return rec
}

// Subscribe registers an observer for state transitions.
//
// Every transition (Fetching, Loaded, Failed) for every id is
// delivered as an Event. The channel has a bounded buffer; a
// subscriber that falls behind loses events rather than stalling the
// store. The returned cancel function unregisters the subscriber and
// closes the channel; it is safe to call more than once.
func (s *Store[T]) Subscribe() (<-chan Event[T], func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Event[T], s.options.SubscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[key]; ok {
				delete(s.subs, key)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Stats returns a snapshot of the store counters.
func (s *Store[T]) Stats() Stats {
	s.mu.RLock()
	entries := len(s.records)
	s.mu.RUnlock()

	return Stats{
		Entries:   entries,
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Fetches:   atomic.LoadInt64(&s.fetches),
		Failures:  atomic.LoadInt64(&s.failures),
		Evictions: atomic.LoadInt64(&s.evictions),
	}
}

// Close ends the session: cancels in-flight fetches and closes all
// subscriber channels. The store must not be used after Close.
func (s *Store[T]) Close() {
	s.cancel()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, ch := range s.subs {
		delete(s.subs, key)
		close(ch)
	}
}

// publish fans an event out to all subscribers without blocking.
func (s *Store[T]) publish(id string, rec Record[T]) {
	ev := Event[T]{ID: id, Record: rec}

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the store.
		}
	}
}

// touchLocked moves id to the front of the LRU list. Caller holds mu.
func (s *Store[T]) touchLocked(id string) {
	if s.lru == nil {
		return
	}
	if el, ok := s.lruIndex[id]; ok {
		s.lru.MoveToFront(el)
		return
	}
	s.lruIndex[id] = s.lru.PushFront(id)
}

// evictLocked drops least recently used terminal records until the
// store is within MaxEntries. Fetching records are never evicted.
// Caller holds mu.
func (s *Store[T]) evictLocked() {
	if s.lru == nil {
		return
	}
	for len(s.records) > s.options.MaxEntries {
		evicted := false
		for el := s.lru.Back(); el != nil; el = el.Prev() {
			id := el.Value.(string)
			if rec, ok := s.records[id]; ok && rec.State == StateFetching {
				continue
			}
			s.lru.Remove(el)
			delete(s.lruIndex, id)
			delete(s.records, id)
			atomic.AddInt64(&s.evictions, 1)
			recordEviction(s.ctx, s.options.Name)
			evicted = true
			break
		}
		if !evicted {
			return // everything left is in flight
		}
	}
}
