// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checker implements a periodic invariant-check engine.
//
// Named checkers (arbitrary predicate functions) are invoked on a fixed
// cadence, their results recorded, and the monitored entity's aggregate
// status tracked over time. Notifications fire on status *transitions*,
// never per run, which bounds alert volume independent of how many
// individual failures a run produces.
//
// The engine is split into small pieces:
//
//   - Registry: the explicit table of registered checkers
//   - Runner: one execution of one checker (retry loop, failure collection)
//   - Suppressed: override-based failure suppression
//   - Apply: the status transition state machine
//   - Escalator: transition-edge notification policy
//   - Dispatcher/Scheduler: cadence fan-out onto worker queues
//
// Persistence and notification delivery are behind the Store, Mailer and
// ChatNotifier interfaces; the engine never talks to a database or an SMTP
// server directly.
package checker

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// MaxFailuresPerRun caps how many relevant failures one attempt collects.
//
// Check functions may be written as unbounded generators; without a cap a
// runaway check turns into an O(n) problem for the database and for every
// inbox downstream. Excess failures are discarded, not an error.
const MaxFailuresPerRun = 100

// RunTimeout bounds one checker invocation's wall-clock duration.
// Enforced by the dispatcher's workers via context, not by the Runner.
const RunTimeout = 3600 * time.Second

// Status is the aggregate state of a Checker across runs.
type Status string

const (
	// StatusNew means the checker has never completed a processed run.
	StatusNew Status = "new"

	// StatusIgnored suppresses all status tracking for the checker.
	// Ignored checkers still run, but runs cause no status mutation,
	// no transition log entry and no notification until an operator
	// un-ignores the checker (which resets it to StatusNew).
	StatusIgnored Status = "ignored"

	// StatusSucceeding means the latest processed run succeeded.
	StatusSucceeding Status = "succeeding"

	// StatusFailing means the latest processed run reported failures.
	StatusFailing Status = "failing"

	// StatusErrored means the latest processed run's check function
	// itself faulted.
	StatusErrored Status = "errored"
)

// RunStatus is the state of a single checker run.
type RunStatus string

const (
	// RunInProgress marks a run that has been created but not finalized.
	// A crash mid-run can leave this state behind permanently; see the
	// note on Store.CreateRun.
	RunInProgress RunStatus = "in_progress"

	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunErrored   RunStatus = "errored"
)

// Cadence is the execution frequency class of a checker. Each cadence maps
// to its own dispatch queue and worker pool.
type Cadence string

const (
	CadenceEveryTenMinutes Cadence = "every_ten_minutes"
	CadenceHourly          Cadence = "hourly"
	CadenceDaily           Cadence = "daily"
)

// Cadences lists all cadences in dispatch order (long to short).
var Cadences = []Cadence{CadenceDaily, CadenceHourly, CadenceEveryTenMinutes}

// Interval returns the nominal period between runs of a cadence.
func (c Cadence) Interval() time.Duration {
	switch c {
	case CadenceEveryTenMinutes:
		return 10 * time.Minute
	case CadenceDaily:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Severity controls the escalation tier: high-severity checkers page the
// on-call address in addition to the normal notifications.
type Severity string

const (
	SeverityLow  Severity = "low"
	SeverityHigh Severity = "high"
)

// Checker is the persistent monitoring entity aggregating the history of
// one registered check. Rows are created lazily on first run (get-or-create
// by unique name).
//
// Status is updated only as a function of run outcomes through Apply, never
// directly by a run's internals. Tracking status on the Checker rather than
// deriving it from the latest run makes acting on *changes* cheap and makes
// ignoring a checker a one-field operation.
type Checker struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Section     string  `json:"section"`
	Description string  `json:"description"`
	Owner       string  `json:"owner,omitempty"`
	Severity    Severity `json:"severity"`
	Cadence     Cadence  `json:"cadence"`
	Status      Status   `json:"status"`

	// LatestStatusChange is nil until the first transition.
	LatestStatusChange *time.Time `json:"latest_status_change,omitempty"`

	// LatestRunDate is updated on every processed (non-ignored) run.
	LatestRunDate *time.Time `json:"latest_run_date,omitempty"`

	CreationDate time.Time `json:"creation_date"`
}

// NewChecker returns a Checker in its initial state.
func NewChecker(name, section string) *Checker {
	return &Checker{
		ID:           uuid.NewString(),
		Name:         name,
		Section:      section,
		Severity:     SeverityLow,
		Cadence:      CadenceHourly,
		Status:       StatusNew,
		CreationDate: time.Now().UTC(),
	}
}

// HumanStatusAge returns a human-readable duration between the latest
// status change and the latest run ("3 days", "an hour"). Empty until both
// timestamps exist.
func (c *Checker) HumanStatusAge() string {
	if c.LatestRunDate == nil || c.LatestStatusChange == nil {
		return ""
	}
	return humanize.RelTime(*c.LatestStatusChange, *c.LatestRunDate, "", "")
}

// CheckerRun is one execution's outcome. Created with RunInProgress before
// any check logic executes, finalized exactly once. Dry runs return a
// transient, unsaved CheckerRun carrying only the computed status.
type CheckerRun struct {
	ID        string    `json:"id"`
	CheckerID string    `json:"checker_id"`
	Checker   string    `json:"checker"`
	Status    RunStatus `json:"status"`

	// Data carries structured payload; on RunErrored the fault's trace
	// text is stored under "exception".
	Data map[string]string `json:"data,omitempty"`

	CreationDate   time.Time  `json:"creation_date"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
}

// CheckerFailure is one reported violation within a run. Only failures of
// runs that end RunFailed are persisted.
type CheckerFailure struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`

	// Text is the short message, Subtext the detail.
	Text    string `json:"text"`
	Subtext string `json:"subtext,omitempty"`

	// Data is a flat attribute mapping used for override matching.
	// A failure without data can never be suppressed.
	Data map[string]string `json:"data,omitempty"`
}

// CheckerOverride is a suppression rule. It matches a failure when every
// key/value pair in Data appears identically in the failure's data (subset
// match). Overrides never expire; operators delete them manually.
type CheckerOverride struct {
	ID string `json:"id"`

	// CheckerName scopes the override to one checker. Empty when
	// ApplyToAllCheckers is set.
	CheckerName        string `json:"checker_name,omitempty"`
	ApplyToAllCheckers bool   `json:"apply_to_all_checkers"`

	Data map[string]string `json:"data"`
	Note string            `json:"note,omitempty"`
	User string            `json:"user,omitempty"`

	CreationDate time.Time `json:"creation_date"`
}

// StatusTransition is one row of the append-only status audit log. Exactly
// one row is written per actual status change, never per run.
type StatusTransition struct {
	ID           string    `json:"id"`
	CheckerName  string    `json:"checker_name"`
	OldValue     Status    `json:"old_value"`
	NewValue     Status    `json:"new_value"`
	CreationDate time.Time `json:"creation_date"`
}

// Result is the tagged outcome of a check function: either success or a
// lazy sequence of failures.
//
// The sequence may be infinite; consumers must range with an explicit cap
// rather than materializing it. The Runner stops consumption once
// MaxFailuresPerRun relevant failures have been collected.
type Result struct {
	failures iter.Seq[CheckerFailure]
}

// Success returns a Result signaling that the check found nothing wrong.
func Success() Result {
	return Result{}
}

// Failures returns a Result wrapping a lazy failure sequence.
func Failures(seq iter.Seq[CheckerFailure]) Result {
	return Result{failures: seq}
}

// FailureList is a convenience for checks that already hold their failures
// in memory.
func FailureList(failures ...CheckerFailure) Result {
	return Failures(func(yield func(CheckerFailure) bool) {
		for _, f := range failures {
			if !yield(f) {
				return
			}
		}
	})
}

// Failing reports whether the result carries a failure sequence. A Result
// with an attached (possibly empty) sequence still counts as failing until
// the sequence is consumed and found empty.
func (r Result) Failing() bool {
	return r.failures != nil
}

// Sequence returns the lazy failure sequence, or nil for a success result.
func (r Result) Sequence() iter.Seq[CheckerFailure] {
	return r.failures
}

// CheckFunc is a registered check's callable.
//
// Return Success() when the invariant holds, Failures(...) to report
// violations, or a non-nil error for an execution fault (the Go analogue of
// a raised exception: not retried, surfaced as RunErrored and escalated by
// severity). Panics are recovered by the Runner and treated as faults.
type CheckFunc func(ctx context.Context) (Result, error)

// RegisteredChecker is the static configuration of one check. It is not
// persisted; the persistent Checker row is synchronized from it on every
// run.
type RegisteredChecker struct {
	Name        string
	Section     string
	Description string

	// Owner is an optional email notified alongside admins on errored
	// transitions.
	Owner string

	// Tries is the retry budget (>= 1). Failures found on the final
	// attempt are the ones that count.
	Tries int

	Severity Severity
	Cadence  Cadence
	Func     CheckFunc
}

// normalized returns a copy with defaults applied and the description
// whitespace-trimmed, matching what the Runner persists.
func (rc RegisteredChecker) normalized() RegisteredChecker {
	rc.Description = strings.TrimSpace(rc.Description)
	if rc.Tries < 1 {
		rc.Tries = 1
	}
	if rc.Severity == "" {
		rc.Severity = SeverityLow
	}
	if rc.Cadence == "" {
		rc.Cadence = CadenceHourly
	}
	return rc
}
