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

// statusForOutcome maps a terminal run outcome to the checker status it
// implies.
func statusForOutcome(outcome RunStatus) (Status, bool) {
	switch outcome {
	case RunFailed:
		return StatusFailing, true
	case RunSucceeded:
		return StatusSucceeding, true
	case RunErrored:
		return StatusErrored, true
	default:
		return "", false
	}
}

// Apply is the status transition state machine: it maps (current status,
// latest run outcome) to the checker's new status and reports whether that
// is an actual change.
//
// On the first-ever processed run, or while the checker is still StatusNew,
// the outcome sets the status directly and the result always counts as a
// change (the first transition is recorded unconditionally). Afterwards the
// status changes only when the outcome disagrees with the current status
// category: a failed run while already failing is noise, not a transition.
//
// Apply is pure. The caller persists the result, appends the transition log
// entry when changed is true, and invokes escalation synchronously; there
// is no implicit event hook. Callers must not invoke Apply for checkers in
// StatusIgnored.
func Apply(current Status, firstRun bool, outcome RunStatus) (next Status, changed bool) {
	target, ok := statusForOutcome(outcome)
	if !ok {
		return current, false
	}
	if firstRun || current == StatusNew {
		return target, true
	}
	if target == current {
		return current, false
	}
	return target, true
}
