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
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/vigilops/vigil/services/checker"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// styles provides pre-configured lipgloss styles for CLI output.
var styles = struct {
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
}

// isTerminal reports whether stdout supports styled output. Piped output
// gets plain text.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// statusLabel renders a checker status with its icon, styled when stdout
// is a terminal.
func statusLabel(s checker.Status) string {
	var icon string
	var style lipgloss.Style
	switch s {
	case checker.StatusSucceeding:
		icon, style = "✓", styles.Success
	case checker.StatusFailing:
		icon, style = "✗", styles.Error
	case checker.StatusErrored:
		icon, style = "⚠", styles.Warning
	case checker.StatusIgnored:
		icon, style = "-", styles.Muted
	default:
		icon, style = "○", styles.Muted
	}
	label := icon + " " + string(s)
	if !isTerminal() {
		return label
	}
	return style.Render(label)
}

// runStatusLabel renders a run status, styled when stdout is a terminal.
func runStatusLabel(s checker.RunStatus) string {
	var style lipgloss.Style
	switch s {
	case checker.RunSucceeded:
		style = styles.Success
	case checker.RunFailed:
		style = styles.Error
	case checker.RunErrored:
		style = styles.Warning
	default:
		style = styles.Muted
	}
	if !isTerminal() {
		return string(s)
	}
	return style.Render(string(s))
}
