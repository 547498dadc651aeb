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
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vigilops/vigil/pkg/logging"
	"github.com/vigilops/vigil/services/checker"
	badgerstore "github.com/vigilops/vigil/services/checker/storage/badger"
)

// runList prints every known checker with its status and how long the
// status has held.
func runList(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Service: "vigil",
	})
	defer logger.Close()

	dbCfg := badgerstore.DefaultConfig(cfg.DataDir)
	dbCfg.Logger = logger.Slog()
	store, err := badgerstore.New(dbCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	checkers, err := store.ListCheckers(cmd.Context(), checker.ListFilter{})
	if err != nil {
		return fmt.Errorf("list checkers: %w", err)
	}
	if len(checkers) == 0 {
		fmt.Println(styles.Muted.Render("no checkers have run yet"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSECTION\tCADENCE\tSTATUS\tFOR")
	for _, chk := range checkers {
		age := chk.HumanStatusAge()
		if age == "" {
			age = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			chk.Name, chk.Section, chk.Cadence, statusLabel(chk.Status), age)
	}
	return w.Flush()
}
