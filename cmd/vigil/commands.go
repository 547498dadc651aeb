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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	runAll     bool
	runFailing bool
	runDry     bool

	rootCmd = &cobra.Command{
		Use:   "vigil",
		Short: "A periodic invariant-check engine",
		Long: `Vigil runs named checkers on fixed cadences, tracks each checker's
status across runs, and escalates on status transitions.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, dispatcher and HTTP API as a daemon",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	runCmd = &cobra.Command{
		Use:   "run [checker_name]",
		Short: "Run one checker (or --all / --failing) immediately",
		RunE:  runRun, // Defined in cmd_run.go
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List checkers with their status and status age",
		RunE:  runList, // Defined in cmd_list.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vigil.yaml", "Path to the configuration file")

	runCmd.Flags().BoolVar(&runAll, "all", false, "Run every registered checker")
	runCmd.Flags().BoolVar(&runFailing, "failing", false, "Run every checker currently failing or errored")
	runCmd.Flags().BoolVar(&runDry, "dry-run", false, "Execute without persisting runs or changing status")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}
