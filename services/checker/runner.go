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
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("vigil.checker")

// Runner orchestrates one execution of one checker: the retry loop, failure
// collection, override filtering, run persistence and the status
// transition.
//
// Thread Safety: Runner is safe for concurrent use. Overlapping invocations
// for the same checker name serialize on a per-name lock for the run's
// duration, so cadence triggers that fire while a slow run is still going
// cannot race on the Checker row or interleave transition log entries.
type Runner struct {
	store     Store
	escalator *Escalator
	logger    *slog.Logger

	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// NewRunner creates a runner.
//
// Inputs:
//
//	store - Persistence collaborator. Must not be nil.
//	escalator - Transition notification policy. May be nil to disable
//	            escalation (manual/CLI invocations).
//	logger - Logger for run lifecycle events. If nil, uses slog.Default().
func NewRunner(store Store, escalator *Escalator, logger *slog.Logger) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("runner: store: %w", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     store,
		escalator: escalator,
		logger:    logger,
		nameLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Run executes one registered checker and returns the resulting run.
//
// The returned error covers harness failures only (storage errors); a
// check that reports failures or faults is a normal outcome, reflected in
// the run's status, and never propagates as an error.
//
// In dry-run mode all persistence and status handling is skipped and the
// returned CheckerRun is transient, carrying only the computed status.
func (r *Runner) Run(ctx context.Context, reg RegisteredChecker, dryRun bool) (*CheckerRun, error) {
	reg = reg.normalized()
	if reg.Func == nil {
		return nil, fmt.Errorf("run %q: %w", reg.Name, ErrNilDependency)
	}

	ctx, span := tracer.Start(ctx, "checker.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("checker.name", reg.Name),
		attribute.Bool("checker.dry_run", dryRun),
	)

	lock := r.lockFor(reg.Name)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	r.logger.Info("checker started", slog.String("name", reg.Name), slog.Bool("dry_run", dryRun))

	chk, created, err := r.store.GetOrCreateChecker(ctx, reg.Name, reg.Section)
	if err != nil {
		return nil, fmt.Errorf("run %q: resolve checker: %w", reg.Name, err)
	}
	if created {
		r.logger.Info("checker created", slog.String("name", reg.Name))
	}
	if err := r.syncMetadata(ctx, chk, reg); err != nil {
		return nil, fmt.Errorf("run %q: sync metadata: %w", reg.Name, err)
	}

	scoped, err := r.store.OverridesForChecker(ctx, chk.Name)
	if err != nil {
		return nil, fmt.Errorf("run %q: load overrides: %w", reg.Name, err)
	}
	global, err := r.store.GlobalOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("run %q: load global overrides: %w", reg.Name, err)
	}

	var run *CheckerRun
	if !dryRun {
		// The run row is created before any check logic executes; it is
		// the run's identity for everything that follows.
		run = &CheckerRun{
			ID:           uuid.NewString(),
			CheckerID:    chk.ID,
			Checker:      chk.Name,
			Status:       RunInProgress,
			CreationDate: time.Now().UTC(),
		}
		if err := r.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("run %q: create run: %w", reg.Name, err)
		}
	}

	collected, faultErr := r.collect(ctx, reg, scoped, global)

	now := time.Now().UTC()
	var status RunStatus
	switch {
	case faultErr != nil:
		status = RunErrored
	case len(collected) > 0:
		status = RunFailed
	default:
		status = RunSucceeded
	}
	span.SetAttributes(attribute.String("checker.run_status", string(status)))
	if status == RunErrored {
		span.SetStatus(codes.Error, "check function faulted")
		r.logger.Warn("checker errored",
			slog.String("name", reg.Name),
			slog.String("error", faultErr.Error()))
	}

	if dryRun {
		return &CheckerRun{Status: status}, nil
	}

	run.Status = status
	run.CompletionDate = &now
	switch status {
	case RunErrored:
		run.Data = map[string]string{"exception": faultErr.Error()}
		err = r.store.FinalizeRun(ctx, run, nil)
	case RunFailed:
		for i := range collected {
			collected[i].ID = uuid.NewString()
			collected[i].RunID = run.ID
		}
		err = r.store.FinalizeRun(ctx, run, collected)
	default:
		err = r.store.FinalizeRun(ctx, run, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("run %q: finalize run: %w", reg.Name, err)
	}

	runsTotal.WithLabelValues(string(status)).Inc()
	runDurationHistogram.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())
	failuresCollectedTotal.Add(float64(len(collected)))

	if err := r.applyTransition(ctx, chk, run, collected); err != nil {
		return run, fmt.Errorf("run %q: %w", reg.Name, err)
	}

	r.logger.Info("checker finished",
		slog.String("name", reg.Name),
		slog.String("status", string(status)),
		slog.Int("failures", len(collected)),
		slog.Duration("duration", time.Since(started)))
	return run, nil
}

// collect drives the retry loop. It returns the failures of the final
// attempt (nil on success) or the execution fault.
//
// Each attempt consumes the check's lazy failure sequence eagerly, skipping
// suppressed failures and stopping once MaxFailuresPerRun relevant failures
// are in hand. An attempt with no relevant failures ends the loop early
// (flaky-tolerant success). A fault ends it immediately: faults are never
// retried.
func (r *Runner) collect(ctx context.Context, reg RegisteredChecker, scoped, global []CheckerOverride) ([]CheckerFailure, error) {
	var collected []CheckerFailure
	for attempt := 1; attempt <= reg.Tries; attempt++ {
		result, err := invokeCheck(ctx, reg.Func)
		if err != nil {
			return nil, err
		}
		if !result.Failing() {
			return nil, nil
		}
		collected = nil
		for failure := range result.Sequence() {
			if Suppressed(failure, scoped, global) {
				failuresSuppressedTotal.Inc()
				continue
			}
			collected = append(collected, failure)
			if len(collected) >= MaxFailuresPerRun {
				break
			}
		}
		if len(collected) == 0 {
			return nil, nil
		}
		if attempt < reg.Tries {
			r.logger.Debug("checker retrying",
				slog.String("name", reg.Name),
				slog.Int("attempt", attempt),
				slog.Int("failures", len(collected)))
		}
	}
	return collected, nil
}

// invokeCheck calls the check function with panic containment. A panic is
// converted into an execution fault carrying the stack trace.
func invokeCheck(ctx context.Context, fn CheckFunc) (result Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("check panicked: %v\n%s", v, debug.Stack())
		}
	}()
	return fn(ctx)
}

// syncMetadata keeps the persistent Checker row in line with the
// registration, writing only when a field actually changed.
func (r *Runner) syncMetadata(ctx context.Context, chk *Checker, reg RegisteredChecker) error {
	changed := false
	if chk.Description != reg.Description {
		chk.Description = reg.Description
		changed = true
	}
	if chk.Severity != reg.Severity {
		chk.Severity = reg.Severity
		changed = true
	}
	if chk.Cadence != reg.Cadence {
		chk.Cadence = reg.Cadence
		changed = true
	}
	if chk.Owner != reg.Owner {
		chk.Owner = reg.Owner
		changed = true
	}
	if !changed {
		return nil
	}
	return r.store.UpdateChecker(ctx, chk)
}

// applyTransition feeds the run outcome through the transition state
// machine and performs the resulting writes and escalation.
//
// Ignored checkers are fully skipped: no status mutation, no latest-run
// bookkeeping, no transition log entry, no notification.
func (r *Runner) applyTransition(ctx context.Context, chk *Checker, run *CheckerRun, failures []CheckerFailure) error {
	if chk.Status == StatusIgnored {
		r.logger.Debug("checker ignored, skipping status update", slog.String("name", chk.Name))
		return nil
	}

	prev, err := r.store.LatestRunExcluding(ctx, chk.Name, run.ID)
	if err != nil {
		return fmt.Errorf("load previous run: %w", err)
	}
	next, changed := Apply(chk.Status, prev == nil, run.Status)

	now := time.Now().UTC()
	old := chk.Status
	chk.LatestRunDate = &now
	if changed {
		chk.Status = next
		chk.LatestStatusChange = &now
	}
	if err := r.store.UpdateChecker(ctx, chk); err != nil {
		return fmt.Errorf("update checker: %w", err)
	}
	if !changed {
		return nil
	}

	transition := &StatusTransition{
		ID:           uuid.NewString(),
		CheckerName:  chk.Name,
		OldValue:     old,
		NewValue:     next,
		CreationDate: now,
	}
	if err := r.store.AppendTransition(ctx, transition); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	transitionsTotal.WithLabelValues(string(next)).Inc()
	r.logger.Info("checker status changed",
		slog.String("name", chk.Name),
		slog.String("old", string(old)),
		slog.String("new", string(next)))

	if r.escalator != nil {
		r.escalator.Escalate(ctx, chk, run, failures)
	}
	return nil
}

// lockFor returns the advisory lock for a checker name.
func (r *Runner) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.nameLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.nameLocks[name] = lock
	}
	return lock
}
