// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command audit starts the webaudit API server.
//
// Webaudit performs AI-driven website audits by coordinating an analysis
// engine (OpenAI) with Chrome DevTools browser automation:
//   - The engine selects browser tools for the target URL
//   - Tools run sequentially against a headless Chrome backend
//   - The engine synthesizes a technical report and executive summary
//
// Usage:
//
//	OPENAI_API_KEY=sk-... go run ./cmd/audit
//	OPENAI_API_KEY=sk-... go run ./cmd/audit -port 9090 -config webaudit.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/audit/health
//
//	# Run a full audit
//	curl -X POST http://localhost:8080/v1/audit \
//	  -H "Content-Type: application/json" \
//	  -d '{"url": "https://example.com"}'
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/webaudit/services/audit"
	"github.com/AleutianAI/webaudit/services/audit/config"
	"github.com/AleutianAI/webaudit/services/llm"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace context flows from incoming
	// headers through all handlers and the pipeline spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	engine, err := llm.NewOpenAIClient()
	if err != nil {
		slog.Error("Failed to initialize analysis engine", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := audit.NewService(cfg, engine)
	handlers := audit.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("webaudit"))
	router.Use(audit.CorrelationMiddleware())
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	audit.RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(cfg)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down webaudit server")
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("Starting webaudit server",
		slog.String("address", addr),
		slog.String("transport", cfg.Transport),
		slog.String("model", cfg.Engine.Model),
	)
	if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(cfg *config.Config) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         WEBAUDIT SERVER                           ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  AI-driven website performance and security audits.               ║
║  Engine: %-56s ║
║  Tool backend transport: %-40s ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/audit/health              │  ║
║  │                                                             │  ║
║  │ # Run a full audit                                          │  ║
║  │ curl -X POST http://localhost:%d/v1/audit \           │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"url": "https://example.com"}'                       │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, cfg.Engine.Model, cfg.Transport, cfg.Server.Port, cfg.Server.Port)
}
