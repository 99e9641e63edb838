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

import "encoding/json"

// emptyObjectSchema is the parameter schema for tools that declare none.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolDef is the generic tool definition passed to SelectTools. Follows the
// OpenAI function calling schema so backend tool catalogs can be forwarded
// to the engine without per-tool glue.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function" for function calling.
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	// Name is the function name the model will call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters is the JSON Schema for the function's arguments. The
	// backend's declared input schema is forwarded verbatim.
	Parameters json.RawMessage `json:"parameters"`
}

// NewToolDef builds a ToolDef from a backend tool's name, description, and
// declared argument schema. A missing schema becomes the empty object
// schema, which function calling requires.
func NewToolDef(name, description string, inputSchema json.RawMessage) ToolDef {
	params := inputSchema
	if len(params) == 0 {
		params = emptyObjectSchema
	}
	return ToolDef{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  params,
		},
	}
}

// ToolCallResponse represents one tool call chosen by the engine.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the engine's identifier for this call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap decodes the call's arguments into a map for tool dispatch.
//
// Description:
//
//	Engines occasionally emit an empty string or a JSON-encoded string
//	instead of an object; both decode to an empty map rather than failing
//	the whole selection.
//
// Thread Safety: This method is safe for concurrent use.
func (t *ToolCallResponse) ArgumentsMap() map[string]any {
	if len(t.Arguments) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(t.Arguments, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
