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
	"log/slog"
	"sync"
)

// ToolDefinition is one tool the backend exposes: a unique name, a human
// description, and a JSON Schema for its arguments. Immutable once fetched.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Catalog discovers the backend's tools once per session and serves them
// from cache afterwards.
//
// Description:
//
//	The first ListTools call opens the bridge if needed, issues tools/list,
//	and caches the result for the remainder of the session. Subsequent
//	calls return the cache without a backend round trip. The cache resets
//	only when the bridge is opened fresh, which under the one-channel-per-
//	run policy means one discovery per audit run.
//
// Thread Safety: The cache is mutex-guarded, so a catalog shared across a
// long-lived channel (not the recommended deployment) still behaves.
type Catalog struct {
	bridge Bridge

	mu     sync.Mutex
	cache  []ToolDefinition
	loaded bool
}

// NewCatalog creates a catalog over the given bridge.
func NewCatalog(bridge Bridge) *Catalog {
	return &Catalog{bridge: bridge}
}

// ListTools returns the backend's tool catalog, fetching it on first use.
//
// Outputs:
//   - []ToolDefinition: The session's tool catalog, in backend order.
//   - error: *ConnectionError if the bridge cannot be opened, *ProtocolError
//     if discovery fails.
func (c *Catalog) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.cache, nil
	}

	if err := c.bridge.Open(ctx); err != nil {
		return nil, err
	}

	result, err := c.bridge.Send(ctx, MethodToolsList, map[string]any{})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Tools []ToolDefinition `json:"tools"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, protocolErrorf(MethodToolsList, "malformed tool catalog: %v", err)
	}

	c.cache = payload.Tools
	c.loaded = true

	slog.Info("Tool catalog discovered", slog.Int("tools", len(c.cache)))
	return c.cache, nil
}

// EssentialSubset filters the catalog to the configured tool names.
//
// Description:
//
//	Returns the cached catalog restricted to names, preserving catalog
//	order. A configured name absent from the catalog is silently dropped:
//	backend capabilities evolve independently of operator configuration,
//	and a stale config entry should narrow the audit, not break it.
//
// Inputs:
//   - ctx: Context for the initial discovery round trip, if needed.
//   - names: The operator-configured essential tool names.
func (c *Catalog) EssentialSubset(ctx context.Context, names []string) ([]ToolDefinition, error) {
	all, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	subset := make([]ToolDefinition, 0, len(names))
	for _, tool := range all {
		if _, ok := wanted[tool.Name]; ok {
			subset = append(subset, tool)
		}
	}

	slog.Debug("Essential tool subset resolved",
		slog.Int("configured", len(names)),
		slog.Int("matched", len(subset)),
	)
	return subset, nil
}
