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

	"github.com/AleutianAI/webaudit/services/llm"
)

// auditReportSchema constrains the report-synthesis call's output. Strict
// structured outputs require additionalProperties: false and every property
// listed under required; optional semantics are expressed with nullable
// types instead. Strict mode also forbids free-form maps, so the header
// presence object enumerates the headers the audit workflow inspects.
const auditReportSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["audit_id", "url", "timestamp", "overall_score", "overall_grade", "performance", "security", "recommendations"],
  "properties": {
    "audit_id": {"type": ["string", "null"]},
    "url": {"type": "string"},
    "timestamp": {"type": ["string", "null"]},
    "overall_score": {"type": ["integer", "null"], "minimum": 0, "maximum": 100},
    "overall_grade": {"type": ["string", "null"], "enum": ["A", "B", "C", "D", "F", null]},
    "performance": {
      "type": "object",
      "additionalProperties": false,
      "required": ["lighthouse_score", "ttfb", "fcp", "lcp", "fid", "cls"],
      "properties": {
        "lighthouse_score": {"type": ["integer", "null"]},
        "ttfb": {"type": ["number", "null"]},
        "fcp": {"type": ["number", "null"]},
        "lcp": {"type": ["number", "null"]},
        "fid": {"type": ["number", "null"]},
        "cls": {"type": ["number", "null"]}
      }
    },
    "security": {
      "type": "object",
      "additionalProperties": false,
      "required": ["risk_level", "https_enabled", "security_headers", "vulnerabilities"],
      "properties": {
        "risk_level": {"type": ["string", "null"], "enum": ["low", "medium", "high", "critical", "unknown", null]},
        "https_enabled": {"type": "boolean"},
        "security_headers": {
          "type": "object",
          "additionalProperties": false,
          "required": ["csp", "hsts", "x_frame_options"],
          "properties": {
            "csp": {"type": "boolean"},
            "hsts": {"type": "boolean"},
            "x_frame_options": {"type": "boolean"}
          }
        },
        "vulnerabilities": {
          "type": "array",
          "items": {
            "type": "object",
            "additionalProperties": false,
            "required": ["name", "severity", "description"],
            "properties": {
              "name": {"type": "string"},
              "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
              "description": {"type": "string"}
            }
          }
        }
      }
    },
    "recommendations": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["category", "priority", "description"],
        "properties": {
          "category": {"type": "string", "enum": ["performance", "security", "accessibility", "seo"]},
          "priority": {"type": "string", "enum": ["low", "medium", "high"]},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

// executiveSummarySchema constrains the summary-synthesis call's output.
const executiveSummarySchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["business_impact", "key_risks", "investment_priority", "roi_estimate", "action_timeline"],
  "properties": {
    "business_impact": {"type": "string"},
    "key_risks": {"type": "array", "items": {"type": "string"}},
    "investment_priority": {"type": "string", "enum": ["immediate", "quarterly", "annual"]},
    "roi_estimate": {"type": "string"},
    "action_timeline": {"type": "string"}
  }
}`

// AuditReportSchema returns the named response schema for report synthesis.
func AuditReportSchema() llm.ResponseSchema {
	return llm.ResponseSchema{
		Name:   "audit_report",
		Schema: json.RawMessage(auditReportSchema),
	}
}

// ExecutiveSummarySchema returns the named response schema for the
// executive summary.
func ExecutiveSummarySchema() llm.ResponseSchema {
	return llm.ResponseSchema{
		Name:   "executive_summary",
		Schema: json.RawMessage(executiveSummarySchema),
	}
}
