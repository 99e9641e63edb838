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
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// correlationHeader carries the request id across service hops.
const correlationHeader = "X-Correlation-ID"

// correlationKey is the gin context key for the request id.
const correlationKey = "correlation_id"

// CorrelationMiddleware assigns each request a correlation id (reusing the
// caller's if present), echoes it in the response header, and logs request
// timing.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header(correlationHeader, id)

		start := time.Now()
		c.Next()

		slog.Info("Request completed",
			slog.String("correlation_id", id),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// getOrCreateRequestID returns the request's correlation id, minting one if
// the middleware did not run (direct handler tests).
func getOrCreateRequestID(c *gin.Context) string {
	if id, ok := c.Get(correlationKey); ok {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	id := uuid.NewString()
	c.Set(correlationKey, id)
	return id
}
