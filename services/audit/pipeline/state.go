// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates the four-phase website audit run: tool
// selection by the analysis engine, sequential tool execution against the
// browser backend, structured report synthesis, and executive summary
// synthesis. It owns all cross-phase state for a run and hands a completed
// run to the aggregator for assembly into the final AuditRecord.
package pipeline

import (
	"encoding/json"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
)

// Phase names one position in the audit run's state machine. Phases only
// advance forward; a phase is never revisited within a run.
type Phase string

const (
	PhaseSelectingTools      Phase = "selecting_tools"
	PhaseExecutingTools      Phase = "executing_tools"
	PhaseSynthesizingReport  Phase = "synthesizing_report"
	PhaseSynthesizingSummary Phase = "synthesizing_summary"
	PhaseDone                Phase = "done"
	PhaseFailed              Phase = "failed"
)

// Terminal reports whether the phase is an end state of the run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// State is the mutable record for exactly one audit run.
//
// Description:
//
//	Created when a run starts, owned exclusively by the Pipeline for the
//	run's duration, and read by the aggregator once the run reaches
//	PhaseDone. ToolResults is append-only during PhaseExecutingTools; a
//	repeated tool name overwrites the earlier entry. TechnicalReport and
//	ExecutiveSummary are each written exactly once.
//
// Thread Safety: State is NOT safe for concurrent use. Each run owns its
// own State and never shares it across goroutines.
type State struct {
	URL              string
	Phase            Phase
	SelectedCalls    []mcp.ToolCall
	ToolResults      map[string]mcp.ToolResult
	TechnicalReport  json.RawMessage
	ExecutiveSummary json.RawMessage
}

// NewState creates the initial state for an audit run against url.
func NewState(url string) *State {
	return &State{
		URL:         url,
		Phase:       PhaseSelectingTools,
		ToolResults: make(map[string]mcp.ToolResult),
	}
}
