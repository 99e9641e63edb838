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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
)

// PerformanceMetrics is the performance section of an audit record.
// Nil pointer fields mean the engine could not derive the metric from the
// collected tool data.
type PerformanceMetrics struct {
	LighthouseScore *int     `json:"lighthouse_score"`
	TTFB            *float64 `json:"ttfb"`
	FCP             *float64 `json:"fcp"`
	LCP             *float64 `json:"lcp"`
	FID             *float64 `json:"fid"`
	CLS             *float64 `json:"cls"`
}

// Vulnerability is one security finding.
type Vulnerability struct {
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// SecurityAssessment is the security section of an audit record.
// SecurityHeaders maps a header key (e.g. "csp", "hsts") to whether the
// audited page sets it.
type SecurityAssessment struct {
	RiskLevel       string          `json:"risk_level"`
	HTTPSEnabled    bool            `json:"https_enabled"`
	SecurityHeaders map[string]bool `json:"security_headers"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Recommendation is one actionable improvement suggestion.
type Recommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// ExecutiveSummary is the business-facing section of an audit record.
type ExecutiveSummary struct {
	BusinessImpact     string   `json:"business_impact"`
	KeyRisks           []string `json:"key_risks"`
	InvestmentPriority string   `json:"investment_priority"`
	ROIEstimate        string   `json:"roi_estimate"`
	ActionTimeline     string   `json:"action_timeline"`
}

// AuditRecord is the final immutable output of a completed audit run.
//
// Description:
//
//	Built once by Aggregate from a State in PhaseDone. Carries the
//	engine's technical findings, the executive summary, and the raw tool
//	outputs the findings were derived from. Never constructed from a
//	failed run; callers see either a complete record or an explicit error.
type AuditRecord struct {
	AuditID          string                    `json:"audit_id"`
	URL              string                    `json:"url"`
	Status           string                    `json:"status"`
	Timestamp        string                    `json:"timestamp"`
	OverallScore     *int                      `json:"overall_score"`
	OverallGrade     string                    `json:"overall_grade"`
	Performance      PerformanceMetrics        `json:"performance"`
	Security         SecurityAssessment        `json:"security"`
	Recommendations  []Recommendation          `json:"recommendations"`
	ExecutiveSummary ExecutiveSummary          `json:"executive_summary"`
	ToolOutputs      map[string]mcp.ToolResult `json:"tool_outputs"`
}

// technicalReport is the decoded shape of the engine's report output. A
// separate type from AuditRecord because the engine's output may omit
// optional fields that the record must carry with defaults.
type technicalReport struct {
	AuditID         string             `json:"audit_id"`
	Timestamp       string             `json:"timestamp"`
	OverallScore    *int               `json:"overall_score"`
	OverallGrade    string             `json:"overall_grade"`
	Performance     PerformanceMetrics `json:"performance"`
	Security        SecurityAssessment `json:"security"`
	Recommendations []Recommendation   `json:"recommendations"`
}

// Aggregate assembles the final AuditRecord from a completed run.
//
// Description:
//
//	Only callable when the state reached PhaseDone. Decodes the engine's
//	technical report and executive summary, applies defaults for optional
//	fields the engine omitted (missing risk level becomes "unknown",
//	missing collections become empty, missing identifier and timestamp are
//	generated), and attaches the raw tool outputs.
//
// Inputs:
//   - state: A run state in PhaseDone.
//
// Outputs:
//   - *AuditRecord: The complete record.
//   - error: Non-nil if the state is not Done or the stored report or
//     summary cannot be decoded.
func Aggregate(state *State) (*AuditRecord, error) {
	if state.Phase != PhaseDone {
		return nil, fmt.Errorf("pipeline: cannot aggregate run in phase %q", state.Phase)
	}

	var report technicalReport
	if err := json.Unmarshal(state.TechnicalReport, &report); err != nil {
		return nil, fmt.Errorf("pipeline: decoding technical report: %w", err)
	}

	var summary ExecutiveSummary
	if err := json.Unmarshal(state.ExecutiveSummary, &summary); err != nil {
		return nil, fmt.Errorf("pipeline: decoding executive summary: %w", err)
	}

	record := &AuditRecord{
		AuditID:          report.AuditID,
		URL:              state.URL,
		Status:           "completed",
		Timestamp:        report.Timestamp,
		OverallScore:     report.OverallScore,
		OverallGrade:     report.OverallGrade,
		Performance:      report.Performance,
		Security:         report.Security,
		Recommendations:  report.Recommendations,
		ExecutiveSummary: summary,
		ToolOutputs:      state.ToolResults,
	}

	if record.AuditID == "" {
		record.AuditID = uuid.NewString()
	}
	if record.Timestamp == "" {
		record.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if record.Security.RiskLevel == "" {
		record.Security.RiskLevel = "unknown"
	}
	if record.Security.SecurityHeaders == nil {
		record.Security.SecurityHeaders = map[string]bool{}
	}
	if record.Security.Vulnerabilities == nil {
		record.Security.Vulnerabilities = []Vulnerability{}
	}
	if record.Recommendations == nil {
		record.Recommendations = []Recommendation{}
	}
	if record.ExecutiveSummary.KeyRisks == nil {
		record.ExecutiveSummary.KeyRisks = []string{}
	}
	if record.ToolOutputs == nil {
		record.ToolOutputs = map[string]mcp.ToolResult{}
	}
	return record, nil
}
