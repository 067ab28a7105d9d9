// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"errors"
	"fmt"
)

// NotFoundError indicates the upstream answered 404 for the id.
type NotFoundError struct {
	// Resource is the entity kind ("document", "collection", "entity").
	Resource string

	// ID is the id that was requested.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ServerError indicates the upstream answered with a non-2xx status
// other than 404. The status code and response message are preserved
// verbatim for display.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// NetworkError indicates the request never produced a usable response:
// connection failure, timeout, or an unreadable body.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

// Unwrap exposes the transport cause for errors.Is/As.
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsServerError reports whether err is a ServerError.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// IsNetworkError reports whether err is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
