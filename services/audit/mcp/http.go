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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPConfig configures the remote-service transport.
type HTTPConfig struct {
	// BaseURL is the root of the MCP service (e.g. "http://chrome-mcp:3001").
	BaseURL string

	// Timeout bounds each HTTP exchange, including tool execution time.
	Timeout time.Duration
}

// DefaultHTTPConfig returns the stock multi-container configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL: "http://chrome-mcp:3001",
		Timeout: 60 * time.Second,
	}
}

// HTTPBridge realizes the bridge contract against a long-lived MCP service
// exposing tools over REST.
//
// Description:
//
//	The service exposes GET {base}/mcp/tools, POST {base}/mcp/tools/{name}
//	with a JSON body {"arguments": {...}}, and GET {base}/health. Send maps
//	the logical JSON-RPC methods onto those endpoints so callers are
//	transport-agnostic: initialize and Open probe /health, tools/list hits
//	the catalog endpoint, tools/call posts to the per-tool endpoint.
//	Request/response pairing is inherent to HTTP, so no correlation ids are
//	exchanged on the wire.
//
// Thread Safety: Send is serialized by an internal mutex to match the
// one-outstanding-request contract of the subprocess transport.
type HTTPBridge struct {
	cfg        HTTPConfig
	httpClient *http.Client

	mu     sync.Mutex
	opened bool
	closed bool
}

// NewHTTPBridge creates a bridge for the MCP service at cfg.BaseURL.
func NewHTTPBridge(cfg HTTPConfig) *HTTPBridge {
	return &HTTPBridge{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Open implements Bridge.Open by probing the service health endpoint.
func (b *HTTPBridge) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened && !b.closed {
		return nil
	}
	if b.closed {
		return &ConnectionError{Op: "open", Err: fmt.Errorf("bridge already closed")}
	}

	if err := b.probeHealth(ctx); err != nil {
		return &ConnectionError{Op: "health probe", Err: err}
	}
	b.opened = true

	slog.Info("MCP service reachable", slog.String("base_url", b.cfg.BaseURL))
	return nil
}

// Healthy reports whether the remote service answers its health endpoint
// with a healthy status. Used by the audit service's own health handler.
func (b *HTTPBridge) Healthy(ctx context.Context) bool {
	return b.probeHealth(ctx) == nil
}

func (b *HTTPBridge) probeHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if body.Status != "healthy" {
		return fmt.Errorf("service reported status %q", body.Status)
	}
	return nil
}

// Send implements Bridge.Send by mapping the logical method onto the
// service's REST endpoints.
func (b *HTTPBridge) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened || b.closed {
		return nil, protocolErrorf(method, "bridge is not open")
	}

	switch method {
	case MethodInitialize:
		// Connection setup happened in Open; acknowledge without a round trip.
		return json.RawMessage(`{}`), nil
	case MethodToolsList:
		return b.listTools(ctx)
	case MethodToolsCall:
		return b.callTool(ctx, params)
	default:
		return nil, protocolErrorf(method, "method not supported by HTTP transport")
	}
}

func (b *HTTPBridge) listTools(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/mcp/tools", nil)
	if err != nil {
		return nil, protocolErrorf(MethodToolsList, "building request: %v", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, protocolErrorf(MethodToolsList, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, protocolErrorf(MethodToolsList, "reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocolErrorf(MethodToolsList, "service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	// The endpoint already returns the tools/list result shape {"tools": [...]}.
	return body, nil
}

func (b *HTTPBridge) callTool(ctx context.Context, params any) (json.RawMessage, error) {
	// Normalize params through JSON so callers may pass either the typed
	// struct or a plain map.
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, protocolErrorf(MethodToolsCall, "marshaling params: %v", err)
	}
	var call callToolParams
	if err := json.Unmarshal(raw, &call); err != nil || call.Name == "" {
		return nil, protocolErrorf(MethodToolsCall, "params missing tool name")
	}

	payload, err := json.Marshal(map[string]any{"arguments": call.Arguments})
	if err != nil {
		return nil, protocolErrorf(MethodToolsCall, "marshaling arguments: %v", err)
	}

	endpoint := b.cfg.BaseURL + "/mcp/tools/" + url.PathEscape(call.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, protocolErrorf(MethodToolsCall, "building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, protocolErrorf(MethodToolsCall, "request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, protocolErrorf(MethodToolsCall, "reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocolErrorf(MethodToolsCall, "service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wrapper struct {
		Success bool            `json:"success"`
		Result  json.RawMessage `json:"result"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, protocolErrorf(MethodToolsCall, "malformed response: %v", err)
	}
	if !wrapper.Success {
		msg := wrapper.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &ToolError{Name: call.Name, Message: msg}
	}
	return wrapper.Result, nil
}

// Close implements Bridge.Close. The service outlives the session, so this
// only marks the bridge unusable.
func (b *HTTPBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.opened = false
	return nil
}
