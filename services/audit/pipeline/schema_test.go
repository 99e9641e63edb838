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
	"testing"
)

// decodeSchema unmarshals a schema document for structural assertions.
func decodeSchema(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	return doc
}

func requiredSet(t *testing.T, obj map[string]any) map[string]bool {
	t.Helper()
	raw, ok := obj["required"].([]any)
	if !ok {
		t.Fatalf("object has no required list: %v", obj["required"])
	}
	set := make(map[string]bool, len(raw))
	for _, v := range raw {
		set[v.(string)] = true
	}
	return set
}

func property(t *testing.T, obj map[string]any, name string) map[string]any {
	t.Helper()
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		t.Fatal("object has no properties")
	}
	child, ok := props[name].(map[string]any)
	if !ok {
		t.Fatalf("property %q missing", name)
	}
	return child
}

func TestAuditReportSchema_DeclaresRecordFields(t *testing.T) {
	schema := AuditReportSchema()
	if schema.Name != "audit_report" {
		t.Errorf("schema name = %q", schema.Name)
	}
	doc := decodeSchema(t, schema.Schema)

	// Strict mode drops anything not in the required list, so every field
	// the analysis prompt asks for must be declared here.
	top := requiredSet(t, doc)
	for _, field := range []string{"overall_score", "overall_grade", "performance", "security", "recommendations"} {
		if !top[field] {
			t.Errorf("top-level required list missing %q", field)
		}
	}

	perf := requiredSet(t, property(t, doc, "performance"))
	for _, metric := range []string{"lighthouse_score", "ttfb", "fcp", "lcp", "fid", "cls"} {
		if !perf[metric] {
			t.Errorf("performance required list missing %q", metric)
		}
	}

	security := property(t, doc, "security")
	if !requiredSet(t, security)["security_headers"] {
		t.Error("security required list missing security_headers")
	}
	headers := requiredSet(t, property(t, security, "security_headers"))
	for _, header := range []string{"csp", "hsts", "x_frame_options"} {
		if !headers[header] {
			t.Errorf("security_headers required list missing %q", header)
		}
	}
}

func TestExecutiveSummarySchema_IsValid(t *testing.T) {
	schema := ExecutiveSummarySchema()
	if schema.Name != "executive_summary" {
		t.Errorf("schema name = %q", schema.Name)
	}
	doc := decodeSchema(t, schema.Schema)
	summary := requiredSet(t, doc)
	for _, field := range []string{"business_impact", "key_risks", "investment_priority", "roi_estimate", "action_timeline"} {
		if !summary[field] {
			t.Errorf("summary required list missing %q", field)
		}
	}
}
