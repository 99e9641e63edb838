// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ToolError indicates a specific tool call failed at the backend. Unlike
// connection and protocol errors it is not fatal to a run: the executor
// converts it into an error-flavored ToolResult and the audit continues.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp: tool %q failed: %s", e.Name, e.Message)
}

// ToolCall is one requested tool invocation, produced by the analysis
// engine's selection phase.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the recorded outcome of one tool invocation. An error is a
// first-class outcome of execution, retained in the audit's raw outputs
// rather than discarded.
type ToolResult struct {
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS int64           `json:"duration_ms"`
}

// Failed reports whether the invocation produced an error marker instead of
// a payload.
func (r ToolResult) Failed() bool { return r.Error != "" }

// Executor invokes single named tools through the bridge. It is the one
// dispatch point from tool name to backend invocation; there is no per-tool
// branching anywhere above it.
type Executor struct {
	bridge Bridge
}

// NewExecutor creates an executor over the given bridge.
func NewExecutor(bridge Bridge) *Executor {
	return &Executor{bridge: bridge}
}

// Execute runs one tool call and returns its recorded result.
//
// Description:
//
//	Delegates to the bridge's tools/call and measures wall-clock duration
//	around the exchange. Any failure the bridge raises here — backend tool
//	error, protocol violation, timeout — is caught and converted into a
//	ToolResult carrying the failure message. Execution of one tool never
//	propagates an error out of this layer: a single misbehaving tool
//	degrades that tool's data, not the audit.
//
// Thread Safety: Safe for concurrent use, though the pipeline executes
// tools strictly sequentially.
func (e *Executor) Execute(ctx context.Context, call ToolCall) ToolResult {
	slog.Info("Tool execution started", slog.String("tool", call.Name))

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}

	start := time.Now()
	payload, err := e.bridge.Send(ctx, MethodToolsCall, callToolParams{
		Name:      call.Name,
		Arguments: args,
	})
	duration := time.Since(start)

	result := ToolResult{
		Name:       call.Name,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		slog.Error("Tool execution failed",
			slog.String("tool", call.Name),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return result
	}

	result.Payload = payload
	slog.Info("Tool execution completed",
		slog.String("tool", call.Name),
		slog.Duration("duration", duration),
	)
	return result
}
