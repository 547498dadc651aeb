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

// Suppressed reports whether a failure is matched by a configured override
// and should be silently dropped.
//
// A failure with no attached data is never suppressed: absence of data
// means there are no filterable attributes, so the failure is always
// relevant. Otherwise the failure is suppressed when any checker-scoped
// override, or any global override, has a data mapping that is a subset of
// the failure's data. Checker-scoped overrides are consulted first; either
// match suffices, so ordering only short-circuits and never changes the
// outcome.
//
// No shape validation is performed on override data. An override with an
// empty data mapping trivially matches every failure that carries any data;
// that is the caller's responsibility, not something guarded here.
func Suppressed(failure CheckerFailure, scoped, global []CheckerOverride) bool {
	if len(failure.Data) == 0 {
		return false
	}
	for _, o := range scoped {
		if subsetOf(o.Data, failure.Data) {
			return true
		}
	}
	for _, o := range global {
		if subsetOf(o.Data, failure.Data) {
			return true
		}
	}
	return false
}

// subsetOf reports whether every key in sub is present in super with an
// equal value. Extra keys on super are ignored.
func subsetOf(sub, super map[string]string) bool {
	for k, v := range sub {
		got, ok := super[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}
