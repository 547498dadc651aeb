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

	"github.com/spf13/cobra"

	"github.com/vigilops/vigil/pkg/logging"
	"github.com/vigilops/vigil/services/checker"
	badgerstore "github.com/vigilops/vigil/services/checker/storage/badger"
)

// runRun executes checkers immediately from the CLI. Manual runs follow
// the exact same path as scheduled runs (persistence, status transitions,
// notifications) unless --dry-run is set.
//
// The exit code reflects harness health only; a checker reporting failures
// is a successfully delivered answer, not a CLI error.
func runRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !runAll && !runFailing {
		return fmt.Errorf("name a checker or pass --all or --failing")
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "vigil",
	})
	defer logger.Close()
	slogger := logger.Slog()

	dbCfg := badgerstore.DefaultConfig(cfg.DataDir)
	dbCfg.Logger = slogger
	store, err := badgerstore.New(dbCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	registry := checker.NewRegistry()
	if err := registerBuiltinCheckers(registry, store); err != nil {
		return err
	}

	runner, err := checker.NewRunner(store, buildEscalator(slogger), slogger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	targets, err := selectTargets(ctx, registry, store, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Println(styles.Muted.Render("nothing to run"))
		return nil
	}

	for _, reg := range targets {
		runCtx, cancel := context.WithTimeout(ctx, checker.RunTimeout)
		run, err := runner.Run(runCtx, reg, runDry)
		cancel()
		if err != nil {
			return fmt.Errorf("run %s: %w", reg.Name, err)
		}
		if runDry {
			fmt.Printf("%s  %s (dry run)\n", styles.Bold.Render(reg.Name), runStatusLabel(run.Status))
			continue
		}
		fmt.Printf("%s  %s  run %s\n", styles.Bold.Render(reg.Name), runStatusLabel(run.Status), run.ID)
	}
	return nil
}

// selectTargets resolves the run command's arguments into registrations.
func selectTargets(ctx context.Context, registry *checker.Registry, store checker.Store, args []string) ([]checker.RegisteredChecker, error) {
	switch {
	case runAll:
		return registry.All(), nil

	case runFailing:
		var targets []checker.RegisteredChecker
		for _, status := range []checker.Status{checker.StatusFailing, checker.StatusErrored} {
			unhealthy, err := store.ListCheckers(ctx, checker.ListFilter{Status: status})
			if err != nil {
				return nil, fmt.Errorf("list %s checkers: %w", status, err)
			}
			for _, chk := range unhealthy {
				reg, ok := registry.Get(chk.Name)
				if !ok {
					// A row without a live registration has nothing to run.
					continue
				}
				targets = append(targets, reg)
			}
		}
		return targets, nil

	default:
		reg, ok := registry.Get(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: %s", checker.ErrUnknownChecker, args[0])
		}
		return []checker.RegisteredChecker{reg}, nil
	}
}
