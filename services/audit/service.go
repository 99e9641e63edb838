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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/webaudit/services/audit/config"
	"github.com/AleutianAI/webaudit/services/audit/mcp"
	"github.com/AleutianAI/webaudit/services/audit/pipeline"
	"github.com/AleutianAI/webaudit/services/llm"
)

// Service wires one audit run per request: a fresh bridge, catalog, and
// executor around the shared analysis engine and configuration.
//
// Description:
//
//	Bridges are never shared across runs because backend state (current
//	page, active trace) is session-scoped. The bridge is acquired at run
//	start and unconditionally released on every exit path.
//
// Thread Safety: Service is safe for concurrent use; each PerformAudit
// call builds its own channel.
type Service struct {
	cfg    *config.Config
	engine llm.AnalysisClient

	// newBridge builds the per-run channel. Overridden in tests.
	newBridge func() mcp.Bridge
}

// NewService creates a Service over the given configuration and engine.
func NewService(cfg *config.Config, engine llm.AnalysisClient) *Service {
	return &Service{
		cfg:       cfg,
		engine:    engine,
		newBridge: cfg.NewBridge,
	}
}

// PerformAudit runs a complete audit of url and aggregates the record.
//
// Description:
//
//	Validates the target, acquires a fresh bridge, runs the four-phase
//	pipeline, and assembles the final record. A failed run yields no
//	partial record: callers see either a complete AuditRecord or an error.
//
// Inputs:
//   - ctx: Context for cancellation; covers the whole run.
//   - url: The audit target, already shape-validated at the HTTP boundary.
//
// Outputs:
//   - *pipeline.AuditRecord: The complete record on success.
//   - error: Non-nil on validation, connection, protocol, or engine failure.
func (s *Service) PerformAudit(ctx context.Context, url string) (*pipeline.AuditRecord, error) {
	if err := ValidateAuditURL(url); err != nil {
		return nil, err
	}

	bridge := s.newBridge()
	defer func() {
		if err := bridge.Close(); err != nil {
			slog.Warn("Closing audit bridge", slog.String("error", err.Error()))
		}
	}()

	catalog := mcp.NewCatalog(bridge)
	executor := mcp.NewExecutor(bridge)
	run := pipeline.NewPipeline(catalog, executor, s.engine, pipeline.Options{
		EssentialTools: s.cfg.EssentialTools,
		Temperature:    s.cfg.Engine.Temperature,
	})

	state, err := run.Run(ctx, url)
	if err != nil {
		return nil, err
	}

	record, err := pipeline.Aggregate(state)
	if err != nil {
		return nil, fmt.Errorf("audit: assembling record: %w", err)
	}
	return record, nil
}

// Healthy reports whether the service's dependencies are reachable. For the
// http transport this probes the remote backend; the stdio transport spawns
// per run, so configuration presence is the only meaningful check.
func (s *Service) Healthy(ctx context.Context) bool {
	if s.cfg.Transport != config.TransportHTTP {
		return true
	}
	bridge, ok := s.newBridge().(*mcp.HTTPBridge)
	if !ok {
		return true
	}
	defer bridge.Close()
	return bridge.Healthy(ctx)
}
