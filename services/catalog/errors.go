// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import "errors"

var (
	// ErrUnknownKind indicates a kind outside documents, collections,
	// entities.
	ErrUnknownKind = errors.New("unknown entity kind")

	// ErrMissingUpstream indicates the service was configured without
	// an upstream URL.
	ErrMissingUpstream = errors.New("upstream URL is required")

	// ErrIDMismatch indicates the upstream answered with a payload
	// whose id differs from the requested id.
	ErrIDMismatch = errors.New("payload id does not match requested id")
)
