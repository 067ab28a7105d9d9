// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for
// security-critical operations.
//
// Entity ids arrive from URLs and end up in upstream request paths and
// storage keys. Validating them here prevents path traversal and key
// injection.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIDLength is the longest accepted entity id.
const MaxIDLength = 128

// idPattern matches valid entity ids.
// Allows: letters, digits, dots, hyphens, underscores.
// Upstream ids are hex text ids or UUID-style strings; both fit.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]*$`)

// ValidateEntityID validates an entity id taken from user input.
//
// Valid ids:
//   - 1-128 characters
//   - letters, digits, dots, hyphens, underscores
//   - no ".." sequences (path traversal)
//
// Returns an error if the id is invalid.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id cannot be empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("entity id exceeds %d characters", MaxIDLength)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("entity id contains traversal sequence: %q", id)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid entity id format: %q", id)
	}
	return nil
}

// SanitizeEntityID normalizes and validates an entity id.
//
// Returns the trimmed id if valid, or an error if invalid. Use this
// when the id comes straight from a request path:
//
//	id, err := validation.SanitizeEntityID(c.Param("id"))
//	if err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func SanitizeEntityID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := ValidateEntityID(id); err != nil {
		return "", err
	}
	return id, nil
}
