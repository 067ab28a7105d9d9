// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/casefilehq/casefile/pkg/logging"
	"github.com/casefilehq/casefile/pkg/validation"
	"github.com/casefilehq/casefile/services/catalog/client"
)

// Handlers holds the HTTP handlers for the catalog API.
type Handlers struct {
	service  *Service
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandlers creates handlers bound to a service.
func NewHandlers(service *Service, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handlers{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// resolve validates the id parameter and looks up the kind's store.
// On failure it writes the error response and returns ok=false.
func (h *Handlers) resolve(c *gin.Context, kind string) (ops *kindOps, id string, ok bool) {
	id, err := validation.SanitizeEntityID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return nil, "", false
	}
	ops, found := h.service.kinds[kind]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": ErrUnknownKind.Error(),
		})
		return nil, "", false
	}
	return ops, id, true
}

// GetEntity handles GET /v1/:kind/:id — the read-through path.
//
// Responses:
//
//	200 the payload as fetched from the upstream
//	400 invalid id
//	404 the upstream does not know the id
//	502 upstream or transport failure
//	504 the caller's deadline expired while waiting
func (h *Handlers) GetEntity(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, id, ok := h.resolve(c, kind)
		if !ok {
			return
		}

		rec, err := ops.fetch(c.Request.Context(), id)
		if err != nil {
			h.writeFetchError(c, kind, id, err)
			return
		}
		c.JSON(http.StatusOK, rec.Value)
	}
}

// GetState handles GET /v1/:kind/:id/state — a non-blocking report of
// the cached record. It never triggers a fetch; unseen ids report
// "not_requested".
func (h *Handlers) GetState(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, id, ok := h.resolve(c, kind)
		if !ok {
			return
		}

		rec := ops.get(id)
		resp := StateResponse{
			ID:             id,
			Kind:           kind,
			State:          rec.State.String(),
			FetchedAtMilli: rec.FetchedAtMilli,
		}
		if rec.Err != nil {
			resp.Error = rec.Err.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Refresh handles POST /v1/:kind/:id/refresh — forces a new upstream
// fetch even when the record is already loaded. Concurrent refreshes
// for the same id share one round trip.
func (h *Handlers) Refresh(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, id, ok := h.resolve(c, kind)
		if !ok {
			return
		}

		rec, err := ops.refresh(c.Request.Context(), id)
		if err != nil {
			h.writeFetchError(c, kind, id, err)
			return
		}
		c.JSON(http.StatusOK, rec.Value)
	}
}

// Watch handles GET /v1/:kind/:id/watch — a websocket stream of state
// transitions for one id. The first frame is the current state; every
// later frame is a transition. The stream ends when the client closes
// the socket or the service shuts down.
func (h *Handlers) Watch(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ops, id, ok := h.resolve(c, kind)
		if !ok {
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			h.logger.Warn("websocket upgrade failed",
				"kind", kind, "id", id, "error", err)
			return
		}
		defer conn.Close()

		events, cancel := ops.watch()
		defer cancel()

		if err := conn.WriteJSON(watchEvent(kind, id, ops.get(id))); err != nil {
			return
		}

		// Read pump: detects the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, open := <-events:
				if !open {
					return
				}
				if ev.ID != id {
					continue
				}
				if err := conn.WriteJSON(watchEvent(kind, id, ev.Record)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}

// Stats handles GET /v1/catalog/stats.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeFetchError maps fetch errors to HTTP statuses. The upstream
// error message is preserved in the response body.
func (h *Handlers) writeFetchError(c *gin.Context, kind, id string, err error) {
	status := http.StatusBadGateway
	switch {
	case client.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusBadGateway {
		h.logger.Warn("fetch failed",
			"kind", kind, "id", id,
			"request_id", RequestIDFrom(c),
			"error", err)
	}
	c.JSON(status, gin.H{
		"status":  "error",
		"message": err.Error(),
	})
}

func watchEvent(kind, id string, rec recordView) WatchEvent {
	ev := WatchEvent{
		ID:             id,
		Kind:           kind,
		State:          rec.State.String(),
		FetchedAtMilli: rec.FetchedAtMilli,
	}
	if rec.Err != nil {
		ev.Error = rec.Err.Error()
	}
	return ev
}
