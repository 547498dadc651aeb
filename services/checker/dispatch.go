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
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Switches are the dispatch-time disable controls. They are consulted when
// a cadence trigger fires, not when a queued run executes, so flipping them
// affects the next trigger rather than in-flight work.
type Switches struct {
	// DisableCheckers is the global kill switch.
	DisableCheckers bool

	// DisabledNames excludes specific checkers from being enqueued.
	DisabledNames map[string]struct{}
}

// NewSwitches builds Switches from a name list.
func NewSwitches(disableAll bool, disabledNames []string) Switches {
	s := Switches{DisableCheckers: disableAll, DisabledNames: make(map[string]struct{}, len(disabledNames))}
	for _, name := range disabledNames {
		s.DisabledNames[name] = struct{}{}
	}
	return s
}

// runInvoker is the slice of Runner the dispatcher needs.
type runInvoker interface {
	Run(ctx context.Context, reg RegisteredChecker, dryRun bool) (*CheckerRun, error)
}

// DispatcherConfig sizes the per-cadence worker pools and queues.
type DispatcherConfig struct {
	// Workers maps each cadence to its worker count. Missing or
	// non-positive entries default to defaultWorkers.
	Workers map[Cadence]int

	// QueueSize is the buffer per cadence queue (default 64).
	QueueSize int
}

const defaultWorkers = 2
const defaultQueueSize = 64

// Dispatcher fans a cadence trigger out into individually queued runner
// invocations.
//
// Each cadence owns a queue and a worker pool; invocations for different
// checkers run fully in parallel with no shared mutable state beyond the
// Store. Workers bound each run with a RunTimeout context; a run killed by
// that timeout is not retried (the Runner's retries are within one
// invocation, never across invocations).
type Dispatcher struct {
	registry *Registry
	runner   runInvoker
	logger   *slog.Logger

	switches   atomic.Pointer[Switches]
	queues     map[Cadence]chan RegisteredChecker
	workersCfg map[Cadence]int
	group      *errgroup.Group
	started    atomic.Bool
}

// NewDispatcher creates a dispatcher. Start must be called before Dispatch
// enqueues anything useful.
func NewDispatcher(registry *Registry, runner runInvoker, cfg DispatcherConfig, switches Switches, logger *slog.Logger) (*Dispatcher, error) {
	if registry == nil || runner == nil {
		return nil, fmt.Errorf("dispatcher: %w", ErrNilDependency)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	d := &Dispatcher{
		registry: registry,
		runner:   runner,
		logger:   logger,
		queues:   make(map[Cadence]chan RegisteredChecker, len(Cadences)),
	}
	for _, c := range Cadences {
		d.queues[c] = make(chan RegisteredChecker, cfg.QueueSize)
	}
	d.switches.Store(&switches)
	d.workersCfg = cfg.Workers
	return d, nil
}

// Start launches the worker pools. Workers drain their cadence queue until
// the context is cancelled and the queues are closed via Close.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	group, ctx := errgroup.WithContext(ctx)
	d.group = group
	for _, cadence := range Cadences {
		workers := d.workersCfg[cadence]
		if workers <= 0 {
			workers = defaultWorkers
		}
		queue := d.queues[cadence]
		for i := 0; i < workers; i++ {
			group.Go(func() error {
				d.work(ctx, cadence, queue)
				return nil
			})
		}
	}
}

// work is one worker's loop.
func (d *Dispatcher) work(ctx context.Context, cadence Cadence, queue <-chan RegisteredChecker) {
	for {
		select {
		case <-ctx.Done():
			return
		case reg, ok := <-queue:
			if !ok {
				return
			}
			queueDepthGauge.WithLabelValues(string(cadence)).Dec()
			runCtx, cancel := context.WithTimeout(ctx, RunTimeout)
			if _, err := d.runner.Run(runCtx, reg, false); err != nil {
				d.logger.Error("checker run failed",
					slog.String("name", reg.Name),
					slog.String("cadence", string(cadence)),
					slog.String("error", err.Error()))
			}
			cancel()
		}
	}
}

// Dispatch enqueues every registered checker due for the cadence,
// respecting the global kill switch and the per-name disabled list.
//
// Returns ErrCheckersDisabled when the kill switch is set. A full queue
// drops the invocation for this trigger (the next trigger will pick the
// checker up again) rather than blocking the scheduler.
func (d *Dispatcher) Dispatch(ctx context.Context, cadence Cadence) error {
	switches := d.switches.Load()
	if switches.DisableCheckers {
		d.logger.Info("checkers disabled, skipping dispatch", slog.String("cadence", string(cadence)))
		return ErrCheckersDisabled
	}

	queue, ok := d.queues[cadence]
	if !ok {
		return fmt.Errorf("dispatch: unknown cadence %q", cadence)
	}
	for _, reg := range d.registry.ForCadence(cadence) {
		if _, disabled := switches.DisabledNames[reg.Name]; disabled {
			d.logger.Debug("checker disabled, skipping", slog.String("name", reg.Name))
			continue
		}
		select {
		case queue <- reg:
			dispatchedTotal.WithLabelValues(string(cadence)).Inc()
			queueDepthGauge.WithLabelValues(string(cadence)).Inc()
		default:
			dispatchDroppedTotal.WithLabelValues(string(cadence)).Inc()
			d.logger.Warn("dispatch queue full, dropping invocation",
				slog.String("name", reg.Name),
				slog.String("cadence", string(cadence)))
		}
	}
	return nil
}

// UpdateSwitches swaps the dispatch-time controls. Safe to call while
// dispatching.
func (d *Dispatcher) UpdateSwitches(s Switches) {
	d.switches.Store(&s)
}

// Close closes the queues and waits for in-flight runs to finish.
func (d *Dispatcher) Close() error {
	for _, queue := range d.queues {
		close(queue)
	}
	if d.group != nil {
		return d.group.Wait()
	}
	return nil
}
