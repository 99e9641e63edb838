// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineProvider is the metric label value for the OpenAI analysis engine.
const engineProvider = "openai"

// Package-level Prometheus metrics for analysis-engine calls.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// engineCallDuration measures the duration of analysis-engine API calls.
	//
	// Labels:
	//   - provider: "openai"
	//   - status: "success" or "error"
	engineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webaudit",
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Duration of analysis-engine API calls in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// engineCallsTotal counts the total number of analysis-engine API calls.
	//
	// Labels:
	//   - provider: "openai"
	//   - status: "success" or "error"
	engineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webaudit",
			Subsystem: "engine",
			Name:      "calls_total",
			Help:      "Total number of analysis-engine API calls.",
		},
		[]string{"provider", "status"},
	)

	// engineErrorsTotal counts the total analysis-engine errors by type.
	//
	// Labels:
	//   - provider: "openai"
	//   - error_type: "timeout", "auth", "rate_limit", "server", "refusal", "unknown"
	engineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webaudit",
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Total analysis-engine errors by type.",
		},
		[]string{"provider", "error_type"},
	)

	// engineActiveRequests tracks the number of in-flight engine requests.
	//
	// Labels:
	//   - provider: "openai"
	engineActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "webaudit",
			Subsystem: "engine",
			Name:      "active_requests",
			Help:      "Number of currently active analysis-engine requests.",
		},
		[]string{"provider"},
	)
)

// classifyError maps an error to a label-safe error type string.
//
// Description:
//
//	Inspects the error message to categorize it into one of the predefined
//	error types used as Prometheus label values. This avoids high-cardinality
//	labels from raw error messages.
//
// Inputs:
//
//	err - The error to classify. May be nil.
//
// Outputs:
//
//	string - One of: "timeout", "auth", "rate_limit", "server", "refusal",
//	         "unknown". Returns empty string for nil error.
//
// Thread Safety: Safe for concurrent use.
func classifyError(err error) string {
	if err == nil {
		return ""
	}

	// Check for RefusalError type first
	if _, ok := err.(*RefusalError); ok {
		return "refusal"
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "context canceled") ||
		strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "returned status 401") ||
		strings.Contains(msg, "returned status 403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "api key"):
		return "auth"
	case strings.Contains(msg, "returned status 429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests"):
		return "rate_limit"
	case strings.Contains(msg, "returned status 500") ||
		strings.Contains(msg, "returned status 502") ||
		strings.Contains(msg, "returned status 503") ||
		strings.Contains(msg, "server error") ||
		strings.Contains(msg, "internal error"):
		return "server"
	default:
		return "unknown"
	}
}

// recordEngineMetrics records Prometheus metrics for a completed engine call.
//
// Description:
//
//	One-shot metric recording for both success and error paths. Records
//	duration, call count, and error type (on failure).
//
// Inputs:
//
//	provider - Provider name ("openai").
//	duration - How long the call took.
//	err - The error, if any. Nil means success.
//
// Thread Safety: Safe for concurrent use.
func recordEngineMetrics(provider string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		errType := classifyError(err)
		engineErrorsTotal.WithLabelValues(provider, errType).Inc()
	}

	engineCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	engineCallsTotal.WithLabelValues(provider, status).Inc()
}

// incActiveRequests increments the active requests gauge for a provider.
func incActiveRequests(provider string) {
	engineActiveRequests.WithLabelValues(provider).Inc()
}

// decActiveRequests decrements the active requests gauge for a provider.
func decActiveRequests(provider string) {
	engineActiveRequests.WithLabelValues(provider).Dec()
}
