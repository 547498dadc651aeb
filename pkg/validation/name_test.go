// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateCheckerName(t *testing.T) {
	valid := []string{
		"a",
		"orphaned_invoices",
		"billing-sync-2",
		"x9",
		strings.Repeat("a", 64),
	}
	for _, name := range valid {
		if err := ValidateCheckerName(name); err != nil {
			t.Errorf("ValidateCheckerName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"Has Spaces",
		"UPPERCASE",
		"_leading_underscore",
		"-leading-dash",
		"dots.not.allowed",
		"path/traversal",
		strings.Repeat("a", 65),
	}
	for _, name := range invalid {
		if err := ValidateCheckerName(name); err == nil {
			t.Errorf("ValidateCheckerName(%q) = nil, want error", name)
		}
	}
}

func TestSanitizeCheckerName(t *testing.T) {
	t.Run("normalizes case and whitespace", func(t *testing.T) {
		got, err := SanitizeCheckerName("  Orphaned_Invoices ")
		if err != nil {
			t.Fatalf("SanitizeCheckerName failed: %v", err)
		}
		if got != "orphaned_invoices" {
			t.Errorf("got %q, want %q", got, "orphaned_invoices")
		}
	})

	t.Run("rejects names invalid after normalization", func(t *testing.T) {
		if _, err := SanitizeCheckerName("still has spaces"); err == nil {
			t.Error("expected error for name with spaces")
		}
	})
}
