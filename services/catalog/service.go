// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog is the HTTP-facing entity catalog service.
//
// It composes three layers:
//
//	handlers (gin)  →  hot stores (store package, one per kind)
//	                →  warm tier (badgerstore, optional)
//	                →  upstream client (client package)
//
// A read request flows through the hot store's fetch deduplication; on
// a miss the fetch function consults the warm tier first and only then
// the upstream API. Loaded payloads are written back to the warm tier
// so a later session can answer without the network.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/casefilehq/casefile/pkg/logging"
	"github.com/casefilehq/casefile/services/catalog/client"
	"github.com/casefilehq/casefile/services/catalog/model"
	"github.com/casefilehq/casefile/services/catalog/storage/badgerstore"
	"github.com/casefilehq/casefile/services/catalog/store"
)

// payload is what every cached kind must provide: an identity for the
// id-mismatch check and validation at the storage boundary.
type payload interface {
	EntityID() string
	Validate() error
}

// Service owns the hot stores, the warm tier, and the upstream client.
//
// Thread Safety: safe for concurrent use after NewService returns.
type Service struct {
	cfg    ServiceConfig
	logger *logging.Logger
	client *client.Client
	warm   *badgerstore.Store

	documents   *store.Store[*model.Document]
	collections *store.Store[*model.Collection]
	entities    *store.Store[*model.Entity]

	kinds map[string]*kindOps
}

// NewService wires the catalog from configuration.
//
// The caller must call Close when done.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.UpstreamURL == "" {
		return nil, ErrMissingUpstream
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	cl, err := client.New(client.Config{
		BaseURL:    cfg.UpstreamURL,
		HTTPClient: cfg.HTTPClient,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, fmt.Errorf("create upstream client: %w", err)
	}

	var warm *badgerstore.Store
	if cfg.WarmInMemory || cfg.WarmDir != "" {
		wcfg := badgerstore.DefaultConfig(cfg.WarmDir)
		if cfg.WarmInMemory {
			wcfg = badgerstore.InMemoryConfig()
		}
		if cfg.WarmTTL > 0 {
			wcfg.TTL = cfg.WarmTTL
		}
		wcfg.Logger = logger.Slog()
		warm, err = badgerstore.Open(wcfg)
		if err != nil {
			return nil, fmt.Errorf("open warm tier: %w", err)
		}
	}

	svc := &Service{
		cfg:    cfg,
		logger: logger,
		client: cl,
		warm:   warm,
	}

	storeOpts := func(name string) []store.Option {
		opts := []store.Option{store.WithName(name)}
		if cfg.MaxEntries > 0 {
			opts = append(opts, store.WithMaxEntries(cfg.MaxEntries))
		}
		if cfg.FetchTimeout > 0 {
			opts = append(opts, store.WithFetchTimeout(cfg.FetchTimeout))
		}
		return opts
	}

	svc.documents = store.New(
		fetchThrough[model.Document](svc, warmKind[KindDocuments], cl.Document),
		storeOpts(KindDocuments)...)
	svc.collections = store.New(
		fetchThrough[model.Collection](svc, warmKind[KindCollections], cl.Collection),
		storeOpts(KindCollections)...)
	svc.entities = store.New(
		fetchThrough[model.Entity](svc, warmKind[KindEntities], cl.Entity),
		storeOpts(KindEntities)...)

	svc.kinds = map[string]*kindOps{
		KindDocuments:   adaptStore(svc, KindDocuments, svc.documents),
		KindCollections: adaptStore(svc, KindCollections, svc.collections),
		KindEntities:    adaptStore(svc, KindEntities, svc.entities),
	}
	return svc, nil
}

// fetchThrough builds the store fetch function for one kind: warm tier
// first, upstream second, warm write-back on success.
func fetchThrough[T any, PT interface {
	*T
	payload
}](svc *Service, kind string, upstream func(ctx context.Context, id string) (PT, error)) store.FetchFunc[PT] {
	return func(ctx context.Context, id string) (PT, error) {
		if svc.warm != nil {
			raw, ok, err := svc.warm.Get(ctx, kind, id)
			if err != nil {
				svc.logger.Warn("warm tier read failed",
					"kind", kind, "id", id, "error", err)
			} else if ok {
				var v T
				pv := PT(&v)
				if json.Unmarshal(raw, pv) == nil && pv.Validate() == nil {
					return pv, nil
				}
				// Corrupt warm entry; fall through to the upstream.
				svc.logger.Warn("warm tier entry unreadable, refetching",
					"kind", kind, "id", id)
			}
		}

		v, err := upstream(ctx, id)
		if err != nil {
			return nil, err
		}
		if v.EntityID() != id {
			return nil, &client.NetworkError{
				Err: fmt.Errorf("%w: got %q, requested %q", ErrIDMismatch, v.EntityID(), id),
			}
		}

		if svc.warm != nil {
			if raw, err := json.Marshal(v); err == nil {
				if err := svc.warm.Put(ctx, kind, id, raw); err != nil {
					svc.logger.Warn("warm tier write failed",
						"kind", kind, "id", id, "error", err)
				}
			}
		}
		return v, nil
	}
}

// Document returns the cached record for a document id, fetching it if
// necessary.
func (s *Service) Document(ctx context.Context, id string) (store.Record[*model.Document], error) {
	return s.documents.Fetch(ctx, id)
}

// Collection returns the cached record for a collection id, fetching
// it if necessary.
func (s *Service) Collection(ctx context.Context, id string) (store.Record[*model.Collection], error) {
	return s.collections.Fetch(ctx, id)
}

// Entity returns the cached record for an entity id, fetching it if
// necessary.
func (s *Service) Entity(ctx context.Context, id string) (store.Record[*model.Entity], error) {
	return s.entities.Fetch(ctx, id)
}

// Stats returns counter snapshots for every hot store, keyed by kind.
func (s *Service) Stats() StatsResponse {
	resp := StatsResponse{Stores: make(map[string]StoreStats, len(s.kinds))}
	for kind, ops := range s.kinds {
		st := ops.stats()
		resp.Stores[kind] = StoreStats{
			Entries:   st.Entries,
			Hits:      st.Hits,
			Misses:    st.Misses,
			Fetches:   st.Fetches,
			Failures:  st.Failures,
			Evictions: st.Evictions,
			HitRate:   st.HitRate(),
		}
	}
	return resp
}

// Close shuts down the hot stores and the warm tier.
func (s *Service) Close() error {
	s.documents.Close()
	s.collections.Close()
	s.entities.Close()
	if s.warm != nil {
		if err := s.warm.Close(); err != nil {
			return fmt.Errorf("close warm tier: %w", err)
		}
	}
	return nil
}

// recordView is a type-erased record snapshot for the HTTP layer.
type recordView struct {
	State          store.State
	Value          any
	Err            error
	FetchedAtMilli int64
}

// eventView is a type-erased subscription event.
type eventView struct {
	ID     string
	Record recordView
}

// kindOps erases the store's type parameter so handlers can dispatch
// on the kind path segment.
type kindOps struct {
	kind    string
	get     func(id string) recordView
	fetch   func(ctx context.Context, id string) (recordView, error)
	refresh func(ctx context.Context, id string) (recordView, error)
	watch   func() (<-chan eventView, func())
	stats   func() store.Stats
}

func adaptStore[T any](svc *Service, kind string, st *store.Store[T]) *kindOps {
	return &kindOps{
		kind: kind,
		get: func(id string) recordView {
			return viewOf(st.Get(id))
		},
		fetch: func(ctx context.Context, id string) (recordView, error) {
			rec, err := st.Fetch(ctx, id)
			return viewOf(rec), err
		},
		refresh: func(ctx context.Context, id string) (recordView, error) {
			// Drop the warm entry first so the forced fetch reaches the
			// upstream instead of re-reading the stale payload.
			if svc.warm != nil {
				if err := svc.warm.Delete(ctx, warmKind[kind], id); err != nil {
					svc.logger.Warn("warm tier delete failed",
						"kind", kind, "id", id, "error", err)
				}
			}
			rec, err := st.Refresh(ctx, id)
			return viewOf(rec), err
		},
		watch: func() (<-chan eventView, func()) {
			src, cancel := st.Subscribe()
			out := make(chan eventView, cap(src))
			go func() {
				defer close(out)
				for ev := range src {
					select {
					case out <- eventView{ID: ev.ID, Record: viewOf(ev.Record)}:
					default:
						// Slow consumer; drop, matching store semantics.
					}
				}
			}()
			return out, cancel
		},
		stats: st.Stats,
	}
}

func viewOf[T any](rec store.Record[T]) recordView {
	return recordView{
		State:          rec.State,
		Value:          rec.Value,
		Err:            rec.Err,
		FetchedAtMilli: rec.FetchedAtMilli,
	}
}
