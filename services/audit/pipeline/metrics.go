// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
)

// Package-level Prometheus metrics for audit runs.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// auditRunsTotal counts completed audit runs.
	//
	// Labels:
	//   - status: "success" or "error"
	auditRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webaudit",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of audit runs.",
		},
		[]string{"status"},
	)

	// auditRunDuration measures end-to-end audit run duration.
	//
	// Labels:
	//   - status: "success" or "error"
	auditRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webaudit",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "End-to-end duration of audit runs in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// auditPhaseDuration measures per-phase duration.
	//
	// Labels:
	//   - phase: the pipeline phase name
	auditPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webaudit",
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual pipeline phases in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"phase"},
	)

	// toolExecutionsTotal counts tool executions by tool and outcome.
	//
	// Labels:
	//   - tool: the tool name
	//   - status: "success" or "error"
	toolExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webaudit",
			Subsystem: "pipeline",
			Name:      "tool_executions_total",
			Help:      "Total tool executions by tool name and outcome.",
		},
		[]string{"tool", "status"},
	)
)

// recordRunMetrics records count and duration for a completed run.
func recordRunMetrics(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	auditRunsTotal.WithLabelValues(status).Inc()
	auditRunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// recordPhaseDuration records the duration of one pipeline phase.
func recordPhaseDuration(phase Phase, duration time.Duration) {
	auditPhaseDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
}

// recordToolExecution records the outcome of one tool execution.
func recordToolExecution(result mcp.ToolResult) {
	status := "success"
	if result.Failed() {
		status = "error"
	}
	toolExecutionsTotal.WithLabelValues(result.Name, status).Inc()
}
