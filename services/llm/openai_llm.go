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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model               string                `json:"model"`
	Messages            []openaiMessage       `json:"messages"`
	Temperature         *float32              `json:"temperature,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	Tools               []openaiTool          `json:"tools,omitempty"`
	ToolChoice          string                `json:"tool_choice,omitempty"`
	ResponseFormat      *openaiResponseFormat `json:"response_format,omitempty"`
}

type openaiMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	Refusal   string           `json:"refusal,omitempty"`
	ToolCalls []openaiToolCall `json:"tool_calls,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Tool-related wire types for OpenAI function calling.
type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiCallFunction `json:"function"`
}

type openaiCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Structured-output wire types.
type openaiResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openaiJSONSchema `json:"json_schema,omitempty"`
}

type openaiJSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// RefusalError indicates the engine explicitly declined to answer. The
// pipeline treats this the same as any other engine failure: fatal to the
// phase in which it occurs.
type RefusalError struct {
	Refusal string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("openai: model refused request: %s", e.Refusal)
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements AnalysisClient for OpenAI models using raw net/http.
//
// Description:
//
//	Uses the OpenAI Chat Completions REST API directly without third-party
//	SDKs. Function calling drives tool selection; strict json_schema
//	response formats drive report and summary synthesis.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit
// configuration.
//
// Description:
//
//	Creates an OpenAIClient without reading environment variables. Useful
//	for testing with mock servers or when configuration comes from a source
//	other than environment variables.
//
// Inputs:
//   - apiKey: The OpenAI API key.
//   - model: The model name (e.g., "gpt-4o-mini").
//   - baseURL: The base URL for API requests.
//
// Outputs:
//   - *OpenAIClient: The configured client.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewOpenAIClient creates a new OpenAIClient from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY and OPENAI_MODEL from the environment.
//	Defaults to "gpt-4o-mini" if OPENAI_MODEL is not set.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if apiKey == "" {
		slog.Warn("OpenAI API Key is empty. OpenAI Client will not function.")
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI client", "model", model)
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultOpenAIBaseURL,
	}, nil
}

// SelectTools implements AnalysisClient.SelectTools using function calling.
//
// Description:
//
//	Sends the expert system prompt, the task prompt, and the tool catalog
//	as OpenAI function definitions with tool_choice "auto", then returns
//	the tool calls the model chose, in model order. Zero tool calls is a
//	valid outcome.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - system: The expert persona system prompt.
//   - user: The task prompt naming the audit target.
//   - tools: Tool definitions for function calling.
//   - params: Generation parameters.
//
// Outputs:
//   - []ToolCallResponse: The chosen tool calls, possibly empty.
//   - error: Non-nil on transport or API failure.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) SelectTools(ctx context.Context, system, user string,
	tools []ToolDef, params GenerationParams) ([]ToolCallResponse, error) {

	slog.Debug("SelectTools via OpenAI",
		slog.String("model", o.model),
		slog.Int("tools", len(tools)),
	)

	oaiTools := make([]openaiTool, 0, len(tools))
	for _, td := range tools {
		oaiTools = append(oaiTools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        td.Function.Name,
				Description: td.Function.Description,
				Parameters:  td.Function.Parameters,
			},
		})
	}

	reqPayload := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Tools:      oaiTools,
		ToolChoice: "auto",
	}
	applyParams(&reqPayload, params)

	apiResp, err := o.do(ctx, "SelectTools", reqPayload)
	if err != nil {
		return nil, err
	}

	choice := apiResp.Choices[0]
	calls := make([]ToolCallResponse, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCallResponse{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	slog.Debug("OpenAI selected tools",
		slog.Int("tool_calls", len(calls)),
		slog.String("finish_reason", choice.FinishReason),
	)
	return calls, nil
}

// GenerateStructured implements AnalysisClient.GenerateStructured using
// strict json_schema response formats.
//
// Description:
//
//	Sends the prompt with response_format {type: json_schema, strict: true}
//	so the model's output validates against the given schema. A refusal or
//	a response that is not valid JSON is returned as an error; the caller
//	decides whether that is fatal.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - prompt: The synthesis prompt.
//   - schema: The named JSON Schema to constrain output.
//   - params: Generation parameters.
//
// Outputs:
//   - json.RawMessage: The structured result.
//   - error: Non-nil on transport failure, API error, refusal, or
//     non-JSON content. Refusals are *RefusalError.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) GenerateStructured(ctx context.Context, prompt string,
	schema ResponseSchema, params GenerationParams) (json.RawMessage, error) {

	slog.Debug("GenerateStructured via OpenAI",
		slog.String("model", o.model),
		slog.String("schema", schema.Name),
	)

	reqPayload := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &openaiResponseFormat{
			Type: "json_schema",
			JSONSchema: &openaiJSONSchema{
				Name:   schema.Name,
				Strict: true,
				Schema: schema.Schema,
			},
		},
	}
	applyParams(&reqPayload, params)

	apiResp, err := o.do(ctx, "GenerateStructured", reqPayload)
	if err != nil {
		return nil, err
	}

	msg := apiResp.Choices[0].Message
	if msg.Refusal != "" {
		slog.Warn("OpenAI refused structured request",
			slog.String("schema", schema.Name),
			slog.String("refusal", SafeLogString(msg.Refusal)),
		)
		return nil, &RefusalError{Refusal: msg.Refusal}
	}
	if !json.Valid([]byte(msg.Content)) {
		return nil, fmt.Errorf("openai: structured response is not valid JSON (schema %s)", schema.Name)
	}

	slog.Debug("OpenAI structured response received",
		slog.String("schema", schema.Name),
		slog.Int("response_len", len(msg.Content)),
	)
	return json.RawMessage(msg.Content), nil
}

// applyParams copies the optional generation parameters onto the request.
func applyParams(req *openaiRequest, params GenerationParams) {
	if params.Temperature != nil {
		req.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = params.MaxTokens
	}
}

// do performs one chat completions exchange and returns the parsed response
// with at least one choice guaranteed. Metrics are recorded for both
// success and error paths.
func (o *OpenAIClient) do(ctx context.Context, op string, reqPayload openaiRequest) (resp *openaiResponse, err error) {
	start := time.Now()
	incActiveRequests(engineProvider)
	defer func() {
		decActiveRequests(engineProvider)
		recordEngineMetrics(engineProvider, time.Since(start), err)
	}()

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	slog.Debug("Sending request to OpenAI",
		slog.String("op", op),
		slog.String("model", reqPayload.Model),
	)

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: reading response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai: API returned status %d: %s", httpResp.StatusCode, SafeLogString(string(bodyBytes)))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, SafeLogString(apiResp.Error.Message))
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("openai: returned no choices")
	}
	return &apiResp, nil
}
