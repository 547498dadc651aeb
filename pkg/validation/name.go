// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for
// security-critical operations.
//
// Checker names become database key components and URL path segments, so
// they are restricted to a conservative character set before anything else
// touches them.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// namePattern matches valid checker names.
// Allows: lowercase letters, digits, underscores, hyphens.
// Max length: 64 characters.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateCheckerName validates a checker name for use as a storage key
// and URL path segment.
//
// Valid names:
//   - 1-64 characters
//   - Lowercase letters a-z and digits 0-9
//   - Underscores and hyphens after the first character
//
// Returns an error if the name is invalid.
func ValidateCheckerName(name string) error {
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid checker name: %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", name)
	}

	return nil
}

// SanitizeCheckerName normalizes and validates a checker name.
// Returns the lowercase trimmed name if valid, or an error if invalid.
func SanitizeCheckerName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateCheckerName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
