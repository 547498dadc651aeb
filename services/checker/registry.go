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

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vigilops/vigil/pkg/validation"
)

// Registry is the explicit table of registered checkers.
//
// It is built once at process start and passed by reference into the
// Dispatcher and the CLI; there is no hidden global lookup inside the
// Runner. Registering the same name twice keeps the first registration and
// records the duplicate so startup can surface it.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	checkers   map[string]RegisteredChecker
	duplicates []RegisteredChecker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]RegisteredChecker)}
}

// Register adds a checker to the table, applying defaults (tries=1,
// severity low, hourly cadence) and trimming the description.
//
// Returns ErrDuplicateChecker when the name is already taken; the duplicate
// is recorded and the original registration is kept.
func (r *Registry) Register(rc RegisteredChecker) error {
	if rc.Func == nil {
		return fmt.Errorf("register %q: %w", rc.Name, ErrNilDependency)
	}
	if err := validation.ValidateCheckerName(rc.Name); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	rc = rc.normalized()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.checkers[rc.Name]; exists {
		r.duplicates = append(r.duplicates, rc)
		return fmt.Errorf("register %q: %w", rc.Name, ErrDuplicateChecker)
	}
	r.checkers[rc.Name] = rc
	return nil
}

// Get returns the registration for a name.
func (r *Registry) Get(name string) (RegisteredChecker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.checkers[name]
	return rc, ok
}

// All returns every registration, ordered by name.
func (r *Registry) All() []RegisteredChecker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegisteredChecker, 0, len(r.checkers))
	for _, rc := range r.checkers {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ForCadence returns the registrations due for one cadence, ordered by
// name.
func (r *Registry) ForCadence(c Cadence) []RegisteredChecker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []RegisteredChecker
	for _, rc := range r.checkers {
		if rc.Cadence == c {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Duplicates returns the registrations rejected as duplicates, in
// registration order.
func (r *Registry) Duplicates() []RegisteredChecker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RegisteredChecker(nil), r.duplicates...)
}

// Len returns the number of registered checkers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}
