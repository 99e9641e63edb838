// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit exposes the website-audit service over HTTP: request
// validation, per-run wiring of the tool bridge and pipeline, and the
// JSON boundary consumed by the routing layer.
package audit

import (
	"fmt"
	"net/url"
)

// AuditRequest is the body of POST /v1/audit.
type AuditRequest struct {
	// URL is the audit target. Must carry an http or https scheme and a
	// non-empty host.
	URL string `json:"url" binding:"required"`
}

// ErrorResponse is the JSON error payload returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidateAuditURL checks that raw is a well-formed http/https URL with a
// host. Anything else is a client-input error, not a pipeline error.
func ValidateAuditURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("audit: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("audit: url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("audit: url must include a host")
	}
	return nil
}
