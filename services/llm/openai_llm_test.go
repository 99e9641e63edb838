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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
	errMsg := err.Error()
	if !strings.Contains(errMsg, "openai:") {
		t.Errorf("error should include 'openai:' prefix, got: %s", errMsg)
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o-mini")
	}
}

func TestNewOpenAIClient_CustomModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	client, err := NewOpenAIClient()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o" {
		t.Errorf("model = %q, want %q", client.model, "gpt-4o")
	}
}

func TestOpenAIClient_SelectTools_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify auth header
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key" {
			t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
		}

		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %q, want %q", req.ToolChoice, "auto")
		}
		if len(req.Tools) != 2 {
			t.Errorf("tools count = %d, want 2", len(req.Tools))
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system + user messages, got %+v", req.Messages)
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message: openaiMessage{
						Role: "assistant",
						ToolCalls: []openaiToolCall{
							{
								ID:   "call_1",
								Type: "function",
								Function: openaiCallFunction{
									Name:      "navigate_page",
									Arguments: `{"url":"https://example.com"}`,
								},
							},
							{
								ID:   "call_2",
								Type: "function",
								Function: openaiCallFunction{
									Name:      "take_snapshot",
									Arguments: `{}`,
								},
							},
						},
					},
					FinishReason: "tool_calls",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	tools := []ToolDef{
		NewToolDef("navigate_page", "Navigate to a URL", json.RawMessage(`{"type":"object"}`)),
		NewToolDef("take_snapshot", "Capture a DOM snapshot", nil),
	}

	calls, err := client.SelectTools(context.Background(), "You are an expert.", "Audit example.com", tools, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].Name != "navigate_page" || calls[1].Name != "take_snapshot" {
		t.Errorf("call order wrong: %q, %q", calls[0].Name, calls[1].Name)
	}
	args := calls[0].ArgumentsMap()
	if args["url"] != "https://example.com" {
		t.Errorf("arguments url = %v, want https://example.com", args["url"])
	}
}

func TestOpenAIClient_SelectTools_NoToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Content: "No tools needed."},
					FinishReason: "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	calls, err := client.SelectTools(context.Background(), "sys", "user", nil, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %d, want 0", len(calls))
	}
}

func TestOpenAIClient_GenerateStructured_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Error("expected json_schema response format")
		} else {
			if req.ResponseFormat.JSONSchema.Name != "audit_report" {
				t.Errorf("schema name = %q, want %q", req.ResponseFormat.JSONSchema.Name, "audit_report")
			}
			if !req.ResponseFormat.JSONSchema.Strict {
				t.Error("expected strict schema")
			}
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Content: `{"summary":"looks fine"}`},
					FinishReason: "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	schema := ResponseSchema{
		Name:   "audit_report",
		Schema: json.RawMessage(`{"type":"object"}`),
	}

	result, err := client.GenerateStructured(context.Background(), "Synthesize the report.", schema, GenerationParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}
	if parsed["summary"] != "looks fine" {
		t.Errorf("summary = %v, want %q", parsed["summary"], "looks fine")
	}
}

func TestOpenAIClient_GenerateStructured_Refusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Refusal: "I cannot help with that."},
					FinishReason: "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	_, err := client.GenerateStructured(context.Background(), "prompt", ResponseSchema{Name: "s"}, GenerationParams{})
	if err == nil {
		t.Fatal("expected refusal error")
	}
	var refusal *RefusalError
	if !errors.As(err, &refusal) {
		t.Fatalf("expected *RefusalError, got %T: %v", err, err)
	}
	if refusal.Refusal != "I cannot help with that." {
		t.Errorf("refusal = %q", refusal.Refusal)
	}
}

func TestOpenAIClient_GenerateStructured_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openaiResponse{
			Choices: []openaiChoice{
				{
					Message:      openaiMessage{Role: "assistant", Content: "not json at all"},
					FinishReason: "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	_, err := client.GenerateStructured(context.Background(), "prompt", ResponseSchema{Name: "s"}, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for non-JSON content")
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad key"}}`))
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "bad-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	_, err := client.SelectTools(context.Background(), "sys", "user", nil, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "returned status 401") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	_, err := client.SelectTools(context.Background(), "sys", "user", nil, GenerationParams{})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if !strings.Contains(err.Error(), "no choices") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenAIClient_GenerationParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature = %v, want 0.2", req.Temperature)
		}
		if req.MaxCompletionTokens == nil || *req.MaxCompletionTokens != 2048 {
			t.Errorf("max_completion_tokens = %v, want 2048", req.MaxCompletionTokens)
		}

		resp := openaiResponse{
			Choices: []openaiChoice{
				{Message: openaiMessage{Role: "assistant", Content: "{}"}, FinishReason: "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := &OpenAIClient{
		httpClient: server.Client(),
		apiKey:     "test-key",
		model:      "gpt-4o-mini",
		baseURL:    server.URL,
	}

	temp := float32(0.2)
	maxTokens := 2048
	_, err := client.GenerateStructured(context.Background(), "prompt",
		ResponseSchema{Name: "s"}, GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
