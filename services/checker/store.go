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

import "context"

// ListFilter narrows ListCheckers results. Zero values match everything.
type ListFilter struct {
	Status  Status
	Cadence Cadence
}

// Store is the persistence collaborator for the checker engine.
//
// The engine performs simple create/read/update operations with no
// cross-entity transaction spanning a whole run: run creation, failure
// insertion, checker update and transition append are separate sequential
// writes. A crash between them can leave a run in_progress forever or a
// checker status behind its latest run; that is an accepted limitation.
// Implementations must make FinalizeRun atomic (run update + failure bulk
// insert), since escalation reads the persisted failures of the triggering
// run.
type Store interface {
	// GetOrCreateChecker resolves a Checker row by unique name, creating
	// it in the initial state when absent. The second return reports
	// whether a row was created.
	GetOrCreateChecker(ctx context.Context, name, section string) (*Checker, bool, error)

	// GetChecker returns ErrNotFound for unknown names.
	GetChecker(ctx context.Context, name string) (*Checker, error)

	UpdateChecker(ctx context.Context, c *Checker) error

	// ListCheckers returns checkers matching the filter, ordered by name.
	ListCheckers(ctx context.Context, filter ListFilter) ([]*Checker, error)

	// CreateRun persists a new run row. Runs are created RunInProgress
	// before any check logic executes; a process crash can strand them
	// in that state.
	CreateRun(ctx context.Context, run *CheckerRun) error

	// FinalizeRun atomically persists the run's terminal state together
	// with its failures (empty for succeeded/errored runs).
	FinalizeRun(ctx context.Context, run *CheckerRun, failures []CheckerFailure) error

	// GetRun returns ErrNotFound for unknown run IDs.
	GetRun(ctx context.Context, id string) (*CheckerRun, error)

	// RunsForChecker returns the checker's runs, newest first.
	RunsForChecker(ctx context.Context, name string, limit int) ([]*CheckerRun, error)

	// LatestRunExcluding returns the checker's most recent run whose ID
	// differs from excludeRunID, or (nil, nil) when no such run exists.
	LatestRunExcluding(ctx context.Context, name, excludeRunID string) (*CheckerRun, error)

	// FailuresForRun returns the persisted failures of a run in
	// insertion order.
	FailuresForRun(ctx context.Context, runID string) ([]CheckerFailure, error)

	// OverridesForChecker returns the overrides scoped to one checker.
	OverridesForChecker(ctx context.Context, name string) ([]CheckerOverride, error)

	// GlobalOverrides returns overrides with ApplyToAllCheckers set.
	GlobalOverrides(ctx context.Context) ([]CheckerOverride, error)

	ListOverrides(ctx context.Context) ([]CheckerOverride, error)
	CreateOverride(ctx context.Context, o *CheckerOverride) error
	DeleteOverride(ctx context.Context, id string) error

	// AppendTransition appends one row to the append-only status log.
	AppendTransition(ctx context.Context, t *StatusTransition) error

	// TransitionsForChecker returns the checker's transitions, newest
	// first.
	TransitionsForChecker(ctx context.Context, name string, limit int) ([]StatusTransition, error)
}
