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

import "fmt"

// ExpertPrompt returns the system message defining the audit expert persona.
func ExpertPrompt() string {
	return `You are a Senior Web Performance & Security Audit Expert with 10+ years experience.

EXPERTISE AREAS:
- Core Web Vitals optimization (LCP, FID, CLS, INP)
- OWASP Top 10 security assessment
- Performance bottleneck identification
- Mobile-first optimization strategies

AUDIT STANDARDS:
- Google PageSpeed Insights methodology
- Lighthouse performance scoring
- WCAG accessibility guidelines
- Enterprise security best practices

TOOL USAGE PRINCIPLES:
- Always start with navigate_page to establish context
- Use performance_start_trace for Core Web Vitals measurement
- Execute evaluate_script for comprehensive security analysis
- Prioritize mobile performance with emulate_network
- Document findings with take_screenshot

QUALITY REQUIREMENTS:
- Capture all Core Web Vitals metrics
- Validate security headers (CSP, HSTS, X-Frame-Options)
- Check HTTPS implementation
- Analyze resource optimization opportunities
- Provide actionable recommendations with business impact`
}

// AuditTaskPrompt returns the tool-selection prompt for a target URL,
// including the expected tool workflow order.
func AuditTaskPrompt(url string) string {
	return fmt.Sprintf(`Perform a comprehensive web audit of: %s

REQUIRED WORKFLOW (Execute in this order):

Phase 1 - Foundation Setup:
1. navigate_page(url=%q) - Establish audit context
2. take_snapshot() - Capture DOM structure for analysis

Phase 2 - Performance Analysis:
3. performance_start_trace(reload=true, autoStop=true) - Measure Core Web Vitals
4. emulate_network("Fast 3G") - Test mobile performance [OPTIONAL]
5. performance_stop_trace() - Retrieve performance results
6. list_network_requests() - Analyze resource loading

Phase 3 - Security Assessment:
7. evaluate_script() - Check security headers, HTTPS, OWASP vulnerabilities
8. list_console_messages() - Detect security violations and errors

Phase 4 - Documentation:
9. take_screenshot(fullPage=true) - Visual evidence for report

CRITICAL REQUIREMENTS:
- Must capture Core Web Vitals (LCP, FID, CLS, INP)
- Must validate security headers (CSP, HSTS, X-Frame-Options)
- Must check HTTPS implementation
- Must analyze resource optimization opportunities

Execute all required tools systematically. Focus on actionable insights.`, url, url)
}

// AnalysisPrompt returns the report-synthesis prompt combining the target
// URL with the serialized tool results.
func AnalysisPrompt(url string, toolResults string) string {
	return fmt.Sprintf(`
Senior Web Audit Expert: Generate comprehensive audit report.

URL: %s
Tool Results: %s

ANALYSIS MAPPING:

Performance Section:
- Extract LCP, FID, CLS from performance_stop_trace results
- Calculate lighthouse_score from performance data
- Derive overall_score (0-100) from the combined performance and security findings
- Assign overall_grade (A-F) based on Core Web Vitals thresholds:
  * A: LCP < 2.5s, FID < 100ms, CLS < 0.1
  * B: LCP < 4s, FID < 300ms, CLS < 0.25
  * C: Above B thresholds

Security Section:
- Extract HTTPS status from evaluate_script results
- Parse security_headers (CSP, HSTS, X-Frame-Options) from evaluate_script
  and report each as present (true) or missing (false)
- Identify vulnerabilities from evaluate_script + list_console_messages
- Format each vulnerability as object with:
  * name: Vulnerability type (e.g., "Cross-Site Scripting (XSS)", "Missing Security Headers")
  * severity: "low", "medium", "high", or "critical"
  * description: Detailed explanation of the vulnerability and impact
- Assign risk_level (low/medium/high/critical) based on highest severity found

Vulnerability Detection Rules:
- Missing CSP header: "Content Security Policy Missing", severity: "medium"
- Missing HSTS: "HTTP Strict Transport Security Missing", severity: "medium"
- HTTP instead of HTTPS: "Insecure Protocol", severity: "high"
- Mixed content detected: "Mixed Content Vulnerability", severity: "medium"
- XSS potential from eval/innerHTML: "Cross-Site Scripting (XSS)", severity: "high"
- Missing CSRF protection: "Cross-Site Request Forgery", severity: "medium"
- Console errors indicating security issues: Parse and categorize appropriately

Recommendations Section:
- Performance recommendations from performance + network analysis
- Security recommendations from security analysis
- Prioritize by business impact (high/medium/low)
- Include specific implementation guidance

Return ONLY valid JSON matching the exact output schema format.
Do not include any explanatory text outside the JSON.
`, url, toolResults)
}

// SummaryPrompt returns the executive-summary prompt derived from the
// serialized technical report.
func SummaryPrompt(report string) string {
	return fmt.Sprintf(`
As a Senior Digital Strategy Consultant, create an executive summary for C-suite leadership.

AUDIT DATA:
%s

EXECUTIVE REQUIREMENTS:
- Business impact assessment (revenue, user experience, brand risk)
- Key risks prioritized by business criticality
- Investment priority (immediate/quarterly/annual)
- ROI estimate for recommended improvements
- Action timeline with resource requirements

FOCUS AREAS:
- Competitive advantage implications
- Customer experience impact
- Security risk to business operations
- Performance impact on conversion rates
- Regulatory compliance considerations

DELIVER:
- business_impact: 2-3 sentences on business implications
- key_risks: Top 3 risks in business terms
- investment_priority: "immediate", "quarterly", or "annual"
- roi_estimate: Expected return timeframe and percentage
- action_timeline: Implementation phases with resource needs

Return ONLY valid JSON matching the executive summary schema.
`, report)
}
