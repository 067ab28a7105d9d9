// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client talks to the upstream archive API.
//
// One read endpoint exists per entity kind:
//
//	GET /api/2/documents/:id
//	GET /api/2/collections/:id
//	GET /api/2/entities/:id
//
// Responses are JSON payloads with at least an id. Failures are mapped
// to the typed errors in errors.go so the cache layer can preserve
// their identity: 404 becomes NotFoundError, other non-2xx become
// ServerError, transport failures become NetworkError.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/casefilehq/casefile/services/catalog/model"
)

// HTTPClient interface allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response body is read for the
// preserved message.
const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	// BaseURL is the upstream API root, e.g. "https://archive.internal".
	BaseURL string

	// HTTPClient overrides the transport. Defaults to an http.Client
	// with DefaultTimeout.
	HTTPClient HTTPClient

	// RateLimit is the sustained request rate against the upstream, in
	// requests per second. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst allowance when RateLimit is set.
	RateBurst int

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Client is a read client for the upstream archive API.
//
// Thread Safety: safe for concurrent use.
type Client struct {
	baseURL string
	http    HTTPClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// Document fetches a document by id.
func (c *Client) Document(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := c.getJSON(ctx, "document", id, "/api/2/documents/", &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("invalid document payload: %w", err)}
	}
	return &doc, nil
}

// Collection fetches a collection by id.
func (c *Client) Collection(ctx context.Context, id string) (*model.Collection, error) {
	var col model.Collection
	if err := c.getJSON(ctx, "collection", id, "/api/2/collections/", &col); err != nil {
		return nil, err
	}
	if err := col.Validate(); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("invalid collection payload: %w", err)}
	}
	return &col, nil
}

// Entity fetches a generic entity by id.
func (c *Client) Entity(ctx context.Context, id string) (*model.Entity, error) {
	var ent model.Entity
	if err := c.getJSON(ctx, "entity", id, "/api/2/entities/", &ent); err != nil {
		return nil, err
	}
	if err := ent.Validate(); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("invalid entity payload: %w", err)}
	}
	return &ent, nil
}

// getJSON performs one GET round trip and decodes the payload.
func (c *Client) getJSON(ctx context.Context, resource, id, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &NetworkError{Err: err}
		}
	}

	reqURL := c.baseURL + path + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &NetworkError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed", "resource", resource, "id", id, "error", err)
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &NotFoundError{Resource: resource, ID: id}

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upstream returned error status",
			"resource", resource, "id", id, "status", resp.StatusCode)
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Err: fmt.Errorf("decode %s response: %w", resource, err)}
	}
	return nil
}

// errorMessage extracts a displayable message from an error body.
//
// The upstream usually answers {"status": "error", "message": "..."};
// anything else is passed through trimmed.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(body))
}
