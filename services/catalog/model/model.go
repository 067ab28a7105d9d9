// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package model defines the domain objects served by the catalog:
// entities, documents, and collections.
//
// Payloads arrive as JSON from the upstream API. Beyond the fields
// declared here, anything the upstream sends is kept in the Data/Meta
// maps and passed through untouched; the cache layer treats payloads
// as opaque apart from their id.
package model

import (
	"errors"
	"time"
)

// Entity lifecycle states as reported by the upstream.
const (
	StateActive  = "active"
	StatePending = "pending"
	StateDeleted = "deleted"
)

// ErrMissingID indicates a payload arrived without an id.
var ErrMissingID = errors.New("payload has no id")

// Entity is a generic domain object: a person, company, asset, or any
// other schema-typed record belonging to a collection.
type Entity struct {
	ID           string         `json:"id"`
	Schema       string         `json:"schema"`
	Name         string         `json:"name"`
	State        string         `json:"state"`
	ForeignIDs   []string       `json:"foreign_ids,omitempty"`
	CollectionID string         `json:"collection_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
	UpdatedAt    time.Time      `json:"updated_at,omitzero"`
}

// EntityID returns the unique id of the entity.
func (e *Entity) EntityID() string { return e.ID }

// Validate checks the payload at the network boundary.
func (e *Entity) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	return nil
}

// Document is an ingested file or directory inside a collection.
type Document struct {
	ID           string         `json:"id"`
	CollectionID string         `json:"collection_id,omitempty"`
	ParentID     string         `json:"parent_id,omitempty"`
	ForeignID    string         `json:"foreign_id,omitempty"`
	ContentHash  string         `json:"content_hash,omitempty"`
	FileName     string         `json:"file_name,omitempty"`
	MimeType     string         `json:"mime_type,omitempty"`
	Title        string         `json:"title,omitempty"`
	Status       string         `json:"status,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"created_at,omitzero"`
	UpdatedAt    time.Time      `json:"updated_at,omitzero"`
}

// EntityID returns the unique id of the document.
func (d *Document) EntityID() string { return d.ID }

// Validate checks the payload at the network boundary.
func (d *Document) Validate() error {
	if d.ID == "" {
		return ErrMissingID
	}
	return nil
}

// Collection groups documents and entities under one label.
type Collection struct {
	ID            string    `json:"id"`
	ForeignID     string    `json:"foreign_id,omitempty"`
	Label         string    `json:"label"`
	Category      string    `json:"category,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	CountEntities int64     `json:"count_entities,omitempty"`
	CountDocs     int64     `json:"count_docs,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

// EntityID returns the unique id of the collection.
func (c *Collection) EntityID() string { return c.ID }

// Validate checks the payload at the network boundary.
func (c *Collection) Validate() error {
	if c.ID == "" {
		return ErrMissingID
	}
	return nil
}
