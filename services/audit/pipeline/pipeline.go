// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
	"github.com/AleutianAI/webaudit/services/llm"
)

// pipelineTracerName is the OTel tracer name for audit pipeline spans.
const pipelineTracerName = "webaudit.pipeline"

// summaryTemperature is the fixed temperature for executive summary
// synthesis. Lower than the report temperature for consistency across runs.
const summaryTemperature float32 = 0.3

// ToolSource provides the filtered tool catalog for phase 1.
type ToolSource interface {
	EssentialSubset(ctx context.Context, names []string) ([]mcp.ToolDefinition, error)
}

// ToolRunner executes a single tool call during phase 2. Failures are
// contained inside the returned ToolResult, never returned as an error.
type ToolRunner interface {
	Execute(ctx context.Context, call mcp.ToolCall) mcp.ToolResult
}

// EngineError reports a fatal analysis-engine failure and the phase in
// which it occurred. Tool-level failures never produce an EngineError.
type EngineError struct {
	Phase Phase
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("pipeline: analysis engine failed during %s: %v", e.Phase, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Options configures a Pipeline.
//
// Fields:
//   - EssentialTools: The tool names offered to the engine in phase 1.
//   - Temperature: Sampling temperature for tool selection and report
//     synthesis. Zero means provider default.
type Options struct {
	EssentialTools []string
	Temperature    float32
}

// Pipeline drives one audit run through its four phases.
//
// Description:
//
//	Phases run strictly in order: tool selection, sequential tool
//	execution, report synthesis, summary synthesis. Tool-level failures
//	are recorded and the run continues; engine and bridge failures are
//	fatal. A Pipeline holds no per-run state and may be reused, but the
//	underlying bridge carries browser session state, so callers give each
//	concurrent run its own bridge, catalog, and executor.
//
// Thread Safety: Pipeline itself is safe for concurrent use; its
// dependencies typically are not shared across runs.
type Pipeline struct {
	catalog  ToolSource
	executor ToolRunner
	engine   llm.AnalysisClient
	opts     Options
}

// NewPipeline creates a Pipeline over the given dependencies.
func NewPipeline(catalog ToolSource, executor ToolRunner, engine llm.AnalysisClient, opts Options) *Pipeline {
	return &Pipeline{
		catalog:  catalog,
		executor: executor,
		engine:   engine,
		opts:     opts,
	}
}

// Run executes the full audit state machine for url.
//
// Description:
//
//	Advances the run's State through the four phases. On success the
//	returned State is in PhaseDone with TechnicalReport and
//	ExecutiveSummary populated. On failure the State is in PhaseFailed
//	and the error describes the originating phase; the State is still
//	returned so callers can inspect partial progress, but it cannot be
//	aggregated.
//
// Inputs:
//   - ctx: Context for cancellation. Cancellation surfaces as a fatal
//     error from whichever phase observes it.
//   - url: The audit target. Validation happens at the service boundary;
//     the pipeline assumes a well-formed http/https URL.
//
// Outputs:
//   - *State: The run's final state, never nil.
//   - error: Non-nil when the run failed. Engine failures are *EngineError.
//
// Thread Safety: Safe for concurrent use with per-run dependencies.
func (p *Pipeline) Run(ctx context.Context, url string) (*State, error) {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("audit.url", url)),
	)
	defer span.End()

	start := time.Now()
	state := NewState(url)

	slog.Info("Audit run starting", slog.String("url", url))

	phases := []func(context.Context, *State) error{
		p.selectTools,
		p.executeTools,
		p.synthesizeReport,
		p.synthesizeSummary,
	}
	for _, phase := range phases {
		if err := phase(ctx, state); err != nil {
			state.Phase = PhaseFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordRunMetrics(time.Since(start), err)
			slog.Error("Audit run failed",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			return state, err
		}
	}

	state.Phase = PhaseDone
	recordRunMetrics(time.Since(start), nil)
	slog.Info("Audit run complete",
		slog.String("url", url),
		slog.Int("tool_results", len(state.ToolResults)),
		slog.Duration("duration", time.Since(start)),
	)
	return state, nil
}

// selectTools runs phase 1: fetch the essential tool subset and ask the
// engine which tools to invoke. Zero selected tools is a valid outcome.
func (p *Pipeline) selectTools(ctx context.Context, state *State) error {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.selectTools")
	defer span.End()

	state.Phase = PhaseSelectingTools
	phaseStart := time.Now()
	defer func() { recordPhaseDuration(PhaseSelectingTools, time.Since(phaseStart)) }()

	defs, err := p.catalog.EssentialSubset(ctx, p.opts.EssentialTools)
	if err != nil {
		return fmt.Errorf("pipeline: fetching tool catalog: %w", err)
	}

	toolDefs := make([]llm.ToolDef, 0, len(defs))
	for _, d := range defs {
		toolDefs = append(toolDefs, llm.NewToolDef(d.Name, d.Description, d.InputSchema))
	}

	params := llm.GenerationParams{}
	if p.opts.Temperature > 0 {
		temp := p.opts.Temperature
		params.Temperature = &temp
	}

	calls, err := p.engine.SelectTools(ctx, ExpertPrompt(), AuditTaskPrompt(state.URL), toolDefs, params)
	if err != nil {
		return &EngineError{Phase: PhaseSelectingTools, Err: err}
	}

	for _, c := range calls {
		state.SelectedCalls = append(state.SelectedCalls, mcp.ToolCall{
			Name:      c.Name,
			Arguments: c.ArgumentsMap(),
		})
	}

	span.SetAttributes(attribute.Int("tools.offered", len(toolDefs)))
	span.SetAttributes(attribute.Int("tools.selected", len(calls)))
	slog.Info("Tool selection complete",
		slog.String("url", state.URL),
		slog.Int("selected", len(calls)),
	)
	return nil
}

// executeTools runs phase 2: invoke each selected tool sequentially, in
// engine order. Order matters: navigation must precede tracing, tracing
// start must precede tracing stop. A failed tool becomes a recorded result,
// never a run failure. An empty selection proceeds immediately.
func (p *Pipeline) executeTools(ctx context.Context, state *State) error {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.executeTools",
		trace.WithAttributes(attribute.Int("tools.count", len(state.SelectedCalls))),
	)
	defer span.End()

	state.Phase = PhaseExecutingTools
	phaseStart := time.Now()
	defer func() { recordPhaseDuration(PhaseExecutingTools, time.Since(phaseStart)) }()

	for _, call := range state.SelectedCalls {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline: canceled during tool execution: %w", err)
		}
		result := p.executor.Execute(ctx, call)
		state.ToolResults[result.Name] = result
		recordToolExecution(result)
	}
	return nil
}

// synthesizeReport runs phase 3: ask the engine for the structured
// technical report over the collected tool results.
func (p *Pipeline) synthesizeReport(ctx context.Context, state *State) error {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.synthesizeReport")
	defer span.End()

	state.Phase = PhaseSynthesizingReport
	phaseStart := time.Now()
	defer func() { recordPhaseDuration(PhaseSynthesizingReport, time.Since(phaseStart)) }()

	resultsJSON, err := json.Marshal(state.ToolResults)
	if err != nil {
		return fmt.Errorf("pipeline: serializing tool results: %w", err)
	}

	params := llm.GenerationParams{}
	if p.opts.Temperature > 0 {
		temp := p.opts.Temperature
		params.Temperature = &temp
	}

	report, err := p.engine.GenerateStructured(ctx,
		AnalysisPrompt(state.URL, string(resultsJSON)), AuditReportSchema(), params)
	if err != nil {
		return &EngineError{Phase: PhaseSynthesizingReport, Err: err}
	}

	state.TechnicalReport = report
	span.SetAttributes(attribute.Int("report.bytes", len(report)))
	return nil
}

// synthesizeSummary runs phase 4: derive the executive summary from the
// technical report.
func (p *Pipeline) synthesizeSummary(ctx context.Context, state *State) error {
	ctx, span := otel.Tracer(pipelineTracerName).Start(ctx, "pipeline.synthesizeSummary")
	defer span.End()

	state.Phase = PhaseSynthesizingSummary
	phaseStart := time.Now()
	defer func() { recordPhaseDuration(PhaseSynthesizingSummary, time.Since(phaseStart)) }()

	temp := summaryTemperature
	summary, err := p.engine.GenerateStructured(ctx,
		SummaryPrompt(string(state.TechnicalReport)), ExecutiveSummarySchema(),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		return &EngineError{Phase: PhaseSynthesizingSummary, Err: err}
	}

	state.ExecutiveSummary = summary
	span.SetAttributes(attribute.Int("summary.bytes", len(summary)))
	return nil
}
