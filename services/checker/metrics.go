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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Note: labels are limited to small enums (run status, cadence, new status,
// notification kind) to keep cardinality bounded. Checker names are not
// used as label values.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_runs_total",
		Help: "Completed checker runs by terminal status",
	}, []string{"status"})

	runDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checker_run_duration_seconds",
		Help:    "Wall-clock duration of one checker run",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800, 3600},
	}, []string{"status"})

	failuresCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checker_failures_collected_total",
		Help: "Relevant (non-suppressed) failures collected across runs",
	})

	failuresSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checker_failures_suppressed_total",
		Help: "Failures dropped by override suppression",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_status_transitions_total",
		Help: "Recorded checker status transitions by new status",
	}, []string{"new_status"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_notifications_total",
		Help: "Outbound escalation notifications by kind and result",
	}, []string{"kind", "result"})

	dispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_dispatched_total",
		Help: "Checker invocations enqueued by cadence",
	}, []string{"cadence"})

	dispatchDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checker_dispatch_dropped_total",
		Help: "Invocations dropped because a cadence queue was full",
	}, []string{"cadence"})

	queueDepthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "checker_queue_depth",
		Help: "Current depth of each cadence dispatch queue",
	}, []string{"cadence"})
)
