// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/webaudit/services/audit/config"
	"github.com/AleutianAI/webaudit/services/llm"
)

// newFakeToolService mimics the REST MCP backend for integration tests.
func newFakeToolService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.HandleFunc("/mcp/tools", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"tools":[
			{"name":"navigate_page","description":"Navigate to a URL","inputSchema":{"type":"object"}},
			{"name":"take_screenshot","description":"Capture the page","inputSchema":{"type":"object"}}
		]}`))
	})
	mux.HandleFunc("/mcp/tools/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"success":true,"result":{"status":"ok"}}`))
	})
	return httptest.NewServer(mux)
}

// newFakeAnalysisEngine mimics the chat completions API: the first call
// selects navigate_page, subsequent calls answer structured requests.
func newFakeAnalysisEngine(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tools          []any `json:"tools"`
			ResponseFormat *struct {
				JSONSchema struct {
					Name string `json:"name"`
				} `json:"json_schema"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case len(req.Tools) > 0:
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"navigate_page","arguments":"{\"url\":\"https://example.com\"}"}}
			]},"finish_reason":"tool_calls"}]}`))
		case req.ResponseFormat != nil && req.ResponseFormat.JSONSchema.Name == "executive_summary":
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"business_impact\":\"low\",\"key_risks\":[],\"investment_priority\":\"annual\",\"roi_estimate\":\"\",\"action_timeline\":\"\"}"},"finish_reason":"stop"}]}`))
		default:
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"overall_score\":92,\"overall_grade\":\"A\",\"security\":{\"risk_level\":\"low\",\"https_enabled\":true,\"security_headers\":{\"csp\":true,\"hsts\":true,\"x_frame_options\":true},\"vulnerabilities\":[]},\"performance\":{},\"recommendations\":[]}"},"finish_reason":"stop"}]}`))
		}
	}))
}

func TestPerformAudit_EndToEnd(t *testing.T) {
	toolService := newFakeToolService(t)
	defer toolService.Close()
	engineService := newFakeAnalysisEngine(t)
	defer engineService.Close()

	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Transport = config.TransportHTTP
	cfg.HTTP.BaseURL = toolService.URL

	engine := llm.NewOpenAIClientWithConfig("test-key", "gpt-4o-mini", engineService.URL)
	service := NewService(cfg, engine)

	record, err := service.PerformAudit(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.URL != "https://example.com" {
		t.Errorf("url = %q", record.URL)
	}
	if record.AuditID == "" || record.Timestamp == "" {
		t.Error("record must carry identifier and timestamp")
	}
	if record.OverallGrade != "A" {
		t.Errorf("grade = %q", record.OverallGrade)
	}
	if record.OverallScore == nil || *record.OverallScore != 92 {
		t.Errorf("overall score = %v, want 92", record.OverallScore)
	}
	if !record.Security.SecurityHeaders["csp"] {
		t.Errorf("security headers = %v", record.Security.SecurityHeaders)
	}
	if len(record.ToolOutputs) != 1 {
		t.Fatalf("tool outputs = %d, want 1", len(record.ToolOutputs))
	}
	if result, ok := record.ToolOutputs["navigate_page"]; !ok || result.Failed() {
		t.Errorf("navigate_page output = %+v", record.ToolOutputs)
	}
}

func TestPerformAudit_RejectsInvalidURL(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	service := NewService(cfg, &fakeEngine{})

	if _, err := service.PerformAudit(context.Background(), "ftp://example.com"); err == nil {
		t.Fatal("expected validation error")
	}
}
