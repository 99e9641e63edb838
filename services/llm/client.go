// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the analysis-engine client used by the audit
// pipeline. The engine is a black-box collaborator with two capabilities:
// given a prompt and a tool catalog, select tool calls; given a prompt and
// a target schema, produce a structured JSON result.
package llm

import (
	"context"
	"encoding/json"
)

// GenerationParams are the optional knobs applied to engine calls.
type GenerationParams struct {
	// Temperature controls randomness. Audits use a low temperature for
	// deterministic, repeatable findings.
	Temperature *float32

	// MaxTokens caps completion length.
	MaxTokens *int
}

// ResponseSchema constrains a structured generation to a named JSON Schema.
type ResponseSchema struct {
	// Name identifies the schema to the engine (e.g. "audit_report").
	Name string

	// Schema is the JSON Schema document the output must validate against.
	Schema json.RawMessage
}

// AnalysisClient is the capability surface the pipeline needs from the
// analysis engine.
//
// Description:
//
//	SelectTools asks the engine, given an expert system prompt, a task
//	prompt, and a tool catalog, to choose zero or more tool calls.
//	GenerateStructured asks for a JSON result constrained to a schema.
//	Both are suspension points: the caller blocks until the engine answers
//	or the context is done.
//
// Thread Safety: Implementations must be safe for concurrent use.
type AnalysisClient interface {
	SelectTools(ctx context.Context, system, user string, tools []ToolDef, params GenerationParams) ([]ToolCallResponse, error)

	GenerateStructured(ctx context.Context, prompt string, schema ResponseSchema, params GenerationParams) (json.RawMessage, error)
}
