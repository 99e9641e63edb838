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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all audit routes with the router.
//
// Description:
//
//	Registers the /v1/audit/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Endpoints:
//
//	POST /v1/audit - Run a full audit of a URL
//	GET  /v1/audit/health - Health check
//	GET  /v1/audit/ - Service info
//
// Example:
//
//	service := audit.NewService(cfg, engine)
//	handlers := audit.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	audit.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	auditGroup := rg.Group("/audit")
	{
		auditGroup.POST("", handlers.HandleAudit)
		auditGroup.GET("/health", handlers.HandleHealth)
		auditGroup.GET("/", handlers.HandleRoot)
	}
}
