// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("transport = %q, want %q", cfg.Transport, TransportStdio)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Engine.Model)
	}
	if len(cfg.EssentialTools) != 9 {
		t.Errorf("essential tools = %d, want 9", len(cfg.EssentialTools))
	}
	for _, name := range []string{"navigate_page", "performance_start_trace", "evaluate_script", "take_screenshot"} {
		found := false
		for _, tool := range cfg.EssentialTools {
			if tool == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("essential tools missing %q", name)
		}
	}
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	override := `
transport: http
http:
  base_url: "http://localhost:3001"
  timeout_seconds: 10
engine:
  model: gpt-4o
  temperature: 0.2
`
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("transport = %q, want %q", cfg.Transport, TransportHTTP)
	}
	if cfg.HTTP.BaseURL != "http://localhost:3001" {
		t.Errorf("base_url = %q", cfg.HTTP.BaseURL)
	}
	if cfg.Engine.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.Engine.Model)
	}
	// Fields the override omits keep their defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if len(cfg.EssentialTools) != 9 {
		t.Errorf("essential tools = %d, want default 9", len(cfg.EssentialTools))
	}
}

func TestLoadFile_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("transport = %q", cfg.Transport)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile("/nonexistent/webaudit.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown transport",
			yaml: "server: {port: 8080}\ntransport: grpc\nengine: {model: m, temperature: 0.5}\nessential_tools: [navigate_page]",
			want: "unknown transport",
		},
		{
			name: "bad port",
			yaml: "server: {port: 0}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: 30, request_timeout_seconds: 60}\nengine: {model: m}\nessential_tools: [navigate_page]",
			want: "port",
		},
		{
			name: "missing model",
			yaml: "server: {port: 8080}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: 30, request_timeout_seconds: 60}\nessential_tools: [navigate_page]",
			want: "model",
		},
		{
			name: "temperature out of range",
			yaml: "server: {port: 8080}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: 30, request_timeout_seconds: 60}\nengine: {model: m, temperature: 3.5}\nessential_tools: [navigate_page]",
			want: "temperature",
		},
		{
			name: "empty essential tools",
			yaml: "server: {port: 8080}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: 30, request_timeout_seconds: 60}\nengine: {model: m}",
			want: "essential_tools",
		},
		{
			name: "http without base_url",
			yaml: "server: {port: 8080}\ntransport: http\nengine: {model: m}\nessential_tools: [navigate_page]",
			want: "base_url",
		},
		{
			// A zero request timeout makes every backend request time out
			// immediately, so it is a configuration error, not a setting.
			name: "zero stdio request timeout",
			yaml: "server: {port: 8080}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: 30}\nengine: {model: m}\nessential_tools: [navigate_page]",
			want: "request_timeout_seconds",
		},
		{
			name: "negative stdio startup timeout",
			yaml: "server: {port: 8080}\ntransport: stdio\nstdio: {command: npx, startup_timeout_seconds: -1, request_timeout_seconds: 60}\nengine: {model: m}\nessential_tools: [navigate_page]",
			want: "startup_timeout_seconds",
		},
		{
			name: "zero http timeout",
			yaml: "server: {port: 8080}\ntransport: http\nhttp: {base_url: \"http://localhost:3001\"}\nengine: {model: m}\nessential_tools: [navigate_page]",
			want: "timeout_seconds",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestBridgeConfig_Conversion(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stdio := cfg.BridgeConfig()
	if stdio.Command != "npx" {
		t.Errorf("command = %q", stdio.Command)
	}
	if stdio.StartupTimeout != 30*time.Second {
		t.Errorf("startup timeout = %v", stdio.StartupTimeout)
	}
	if stdio.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %q", stdio.ProtocolVersion)
	}
}

func TestNewBridge_TransportSelection(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := cfg.NewBridge().(*mcp.StdioBridge); !ok {
		t.Error("stdio transport should yield a StdioBridge")
	}

	cfg.Transport = TransportHTTP
	if _, ok := cfg.NewBridge().(*mcp.HTTPBridge); !ok {
		t.Error("http transport should yield an HTTPBridge")
	}
}
