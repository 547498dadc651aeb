// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checker

import "errors"

// Sentinel errors for the checker engine.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateChecker is returned when a name is registered twice.
	ErrDuplicateChecker = errors.New("duplicate checker registration")

	// ErrUnknownChecker is returned when a name has no registration.
	ErrUnknownChecker = errors.New("unknown checker")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")

	// ErrCheckersDisabled is returned by dispatch when the global kill
	// switch is set.
	ErrCheckersDisabled = errors.New("checker execution is disabled")

	// ErrInvalidConfig is returned when configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
