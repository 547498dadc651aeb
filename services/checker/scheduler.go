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
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the three wall-clock triggers: every ten minutes,
// hourly, and daily at a fixed time of day.
//
// Each trigger only calls Dispatch for its cadence; the actual work runs on
// the dispatcher's queues, so a slow checker never delays the clock.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewScheduler wires the cadence triggers. dailyAt is "H:MM" or "HH:MM"
// local time (default "9:30").
func NewScheduler(dispatcher *Dispatcher, dailyAt string, logger *slog.Logger) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("scheduler: %w", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	dailySpec, err := dailyCronSpec(dailyAt)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	s := &Scheduler{cron: cron.New(), dispatcher: dispatcher, logger: logger}
	specs := map[Cadence]string{
		CadenceEveryTenMinutes: "*/10 * * * *",
		CadenceHourly:          "0 * * * *",
		CadenceDaily:           dailySpec,
	}
	for cadence, spec := range specs {
		if _, err := s.cron.AddFunc(spec, s.trigger(cadence)); err != nil {
			return nil, fmt.Errorf("scheduler: add %s trigger: %w", cadence, err)
		}
	}
	return s, nil
}

func (s *Scheduler) trigger(cadence Cadence) func() {
	return func() {
		err := s.dispatcher.Dispatch(context.Background(), cadence)
		if err != nil && !errors.Is(err, ErrCheckersDisabled) {
			s.logger.Error("dispatch failed",
				slog.String("cadence", string(cadence)),
				slog.String("error", err.Error()))
		}
	}
}

// Start begins firing triggers. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the triggers and waits for any trigger callback in flight.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// dailyCronSpec converts "9:30" into the cron expression "30 9 * * *".
func dailyCronSpec(at string) (string, error) {
	if at == "" {
		at = "9:30"
	}
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("daily run time %q: want H:MM", at)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("daily run time %q: bad hour", at)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("daily run time %q: bad minute", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
