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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
	"github.com/AleutianAI/webaudit/services/audit/pipeline"
	"github.com/AleutianAI/webaudit/services/llm"
)

// Handlers holds the HTTP handlers for the audit service.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handlers over service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleAudit handles POST /v1/audit.
//
// Description:
//
//	Validates the request body and target URL, runs the full audit
//	pipeline, and returns the complete AuditRecord. A failed run returns
//	an error payload, never a partial record.
//
// Response:
//
//	200 OK: pipeline.AuditRecord
//	400 Bad Request: malformed body or invalid URL
//	502 Bad Gateway: tool backend or analysis engine failure
//
// Thread Safety: Safe for concurrent use; each request gets its own run.
func (h *Handlers) HandleAudit(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("correlation_id", requestID, "handler", "HandleAudit")

	var req AuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "request body must be JSON with a url field",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := ValidateAuditURL(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_URL",
		})
		return
	}

	logger.Info("Audit requested", slog.String("url", req.URL))

	record, err := h.service.PerformAudit(c.Request.Context(), req.URL)
	if err != nil {
		status, code := classifyAuditError(err)
		logger.Error("Audit failed",
			slog.String("url", req.URL),
			slog.String("code", code),
			slog.String("error", llm.SafeLogString(err.Error())),
		)
		c.JSON(status, ErrorResponse{
			Error: llm.SafeLogString(err.Error()),
			Code:  code,
		})
		return
	}

	logger.Info("Audit completed",
		slog.String("url", req.URL),
		slog.String("audit_id", record.AuditID),
	)
	c.JSON(http.StatusOK, record)
}

// classifyAuditError maps a run failure to an HTTP status and error code.
func classifyAuditError(err error) (int, string) {
	var connErr *mcp.ConnectionError
	var protoErr *mcp.ProtocolError
	var engineErr *pipeline.EngineError
	switch {
	case errors.As(err, &connErr):
		return http.StatusBadGateway, "BACKEND_UNAVAILABLE"
	case errors.As(err, &protoErr):
		return http.StatusBadGateway, "BACKEND_PROTOCOL_ERROR"
	case errors.As(err, &engineErr):
		return http.StatusBadGateway, "ANALYSIS_ENGINE_ERROR"
	default:
		return http.StatusInternalServerError, "AUDIT_FAILED"
	}
}

// HandleHealth handles GET /v1/audit/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	if !h.service.Healthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"transport": h.service.cfg.Transport,
	})
}

// HandleRoot handles GET /v1/audit/.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "webaudit",
		"model":   h.service.cfg.Engine.Model,
		"tools":   len(h.service.cfg.EssentialTools),
	})
}
