// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilops/vigil/services/checker"
)

// registerBuiltinCheckers installs the engine's self-monitoring checkers.
// They watch the checker system itself through the same Store the engine
// writes to.
func registerBuiltinCheckers(reg *checker.Registry, store checker.Store) error {
	builtins := []checker.RegisteredChecker{
		{
			Name:        "stale_in_progress_runs",
			Section:     "vigil",
			Description: "Finds runs stuck in_progress past the run timeout, usually left behind by a crash.",
			Cadence:     checker.CadenceHourly,
			Func:        staleRunsCheck(store),
		},
		{
			Name:        "overdue_checkers",
			Section:     "vigil",
			Description: "Finds checkers whose latest run is older than twice their cadence interval.",
			Cadence:     checker.CadenceDaily,
			Func:        overdueCheckersCheck(store),
		},
	}
	for _, rc := range builtins {
		if err := reg.Register(rc); err != nil {
			return fmt.Errorf("register builtin: %w", err)
		}
	}
	return nil
}

// staleRunsCheck reports in_progress runs older than the run timeout.
func staleRunsCheck(store checker.Store) checker.CheckFunc {
	return func(ctx context.Context) (checker.Result, error) {
		checkers, err := store.ListCheckers(ctx, checker.ListFilter{})
		if err != nil {
			return checker.Result{}, fmt.Errorf("list checkers: %w", err)
		}
		cutoff := time.Now().UTC().Add(-checker.RunTimeout)

		var stale []checker.CheckerFailure
		for _, chk := range checkers {
			runs, err := store.RunsForChecker(ctx, chk.Name, 20)
			if err != nil {
				return checker.Result{}, fmt.Errorf("runs for %s: %w", chk.Name, err)
			}
			for _, run := range runs {
				if run.Status != checker.RunInProgress || run.CreationDate.After(cutoff) {
					continue
				}
				stale = append(stale, checker.CheckerFailure{
					Text:    fmt.Sprintf("Run of %s stuck in progress", chk.Name),
					Subtext: fmt.Sprintf("created %s", run.CreationDate.Format(time.RFC3339)),
					Data: map[string]string{
						"checker": chk.Name,
						"run_id":  run.ID,
					},
				})
			}
		}
		if len(stale) == 0 {
			return checker.Success(), nil
		}
		return checker.FailureList(stale...), nil
	}
}

// overdueCheckersCheck reports checkers whose latest run is older than
// twice their cadence interval. Never-run and ignored checkers are not
// overdue.
func overdueCheckersCheck(store checker.Store) checker.CheckFunc {
	return func(ctx context.Context) (checker.Result, error) {
		checkers, err := store.ListCheckers(ctx, checker.ListFilter{})
		if err != nil {
			return checker.Result{}, fmt.Errorf("list checkers: %w", err)
		}
		now := time.Now().UTC()

		var overdue []checker.CheckerFailure
		for _, chk := range checkers {
			if chk.Status == checker.StatusIgnored || chk.LatestRunDate == nil {
				continue
			}
			allowed := 2 * chk.Cadence.Interval()
			if age := now.Sub(*chk.LatestRunDate); age > allowed {
				overdue = append(overdue, checker.CheckerFailure{
					Text:    fmt.Sprintf("Checker %s has not run recently", chk.Name),
					Subtext: fmt.Sprintf("last ran %s, cadence %s", chk.LatestRunDate.Format(time.RFC3339), chk.Cadence),
					Data: map[string]string{
						"checker": chk.Name,
						"cadence": string(chk.Cadence),
					},
				})
			}
		}
		if len(overdue) == 0 {
			return checker.Success(), nil
		}
		return checker.FailureList(overdue...), nil
	}
}
