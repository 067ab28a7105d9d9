// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the catalog API on a router group, typically
// /v1.
//
// Per kind (documents, collections, entities):
//
//	GET  /:kind/:id          read-through fetch
//	GET  /:kind/:id/state    non-blocking state report
//	GET  /:kind/:id/watch    websocket transition stream
//	POST /:kind/:id/refresh  forced refetch
//
// Plus:
//
//	GET /catalog/stats       counter snapshot across all stores
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	for _, kind := range []string{KindDocuments, KindCollections, KindEntities} {
		g := rg.Group("/" + kind)
		g.GET("/:id", h.GetEntity(kind))
		g.GET("/:id/state", h.GetState(kind))
		g.GET("/:id/watch", h.Watch(kind))
		g.POST("/:id/refresh", h.Refresh(kind))
	}
	rg.GET("/catalog/stats", h.Stats)
}
