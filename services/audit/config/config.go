// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the webaudit service configuration from embedded
// defaults, optionally overridden by an operator-provided YAML file.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/webaudit/services/audit/mcp"
)

// MaxYAMLFileSize bounds operator-provided config files.
const MaxYAMLFileSize = 1 * 1024 * 1024

//go:embed defaults.yaml
var defaultConfigYAML []byte

// Transport names the channel realization used to reach the tool backend.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StdioConfig configures the subprocess transport.
type StdioConfig struct {
	Command               string   `yaml:"command"`
	Args                  []string `yaml:"args"`
	StartupTimeoutSeconds int      `yaml:"startup_timeout_seconds"`
	RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	ProtocolVersion       string   `yaml:"protocol_version"`
	ClientName            string   `yaml:"client_name"`
	ClientVersion         string   `yaml:"client_version"`
}

// HTTPConfig configures the remote-service transport.
type HTTPConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// EngineConfig configures the analysis engine.
type EngineConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// Config is the full service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Server         ServerConfig `yaml:"server"`
	Transport      string       `yaml:"transport"`
	Stdio          StdioConfig  `yaml:"stdio"`
	HTTP           HTTPConfig   `yaml:"http"`
	Engine         EngineConfig `yaml:"engine"`
	EssentialTools []string     `yaml:"essential_tools"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return Load(defaultConfigYAML)
}

// LoadFile loads configuration from path, falling back to embedded defaults
// for any field the file omits.
//
// Inputs:
//   - path: The operator's YAML file. Empty path means embedded defaults only.
//
// Outputs:
//   - *Config: The validated configuration.
//   - error: Non-nil if reading, parsing, or validation fails.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config: %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator's -config flag.
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	// Start from the defaults so a partial file is still a full config.
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		slog.String("path", path),
		slog.String("transport", cfg.Transport),
	)
	return cfg, nil
}

// Load parses and validates configuration from YAML bytes.
func Load(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("config: empty YAML data")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}
	switch c.Transport {
	case TransportStdio:
		if c.Stdio.Command == "" {
			return fmt.Errorf("config: stdio transport requires a command")
		}
		if c.Stdio.StartupTimeoutSeconds <= 0 {
			return fmt.Errorf("config: stdio startup_timeout_seconds must be positive, got %d", c.Stdio.StartupTimeoutSeconds)
		}
		if c.Stdio.RequestTimeoutSeconds <= 0 {
			return fmt.Errorf("config: stdio request_timeout_seconds must be positive, got %d", c.Stdio.RequestTimeoutSeconds)
		}
	case TransportHTTP:
		if c.HTTP.BaseURL == "" {
			return fmt.Errorf("config: http transport requires a base_url")
		}
		if c.HTTP.TimeoutSeconds <= 0 {
			return fmt.Errorf("config: http timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds)
		}
	default:
		return fmt.Errorf("config: unknown transport %q (want %q or %q)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Engine.Model == "" {
		return fmt.Errorf("config: engine model must be set")
	}
	if c.Engine.Temperature < 0 || c.Engine.Temperature > 2 {
		return fmt.Errorf("config: engine temperature %v out of range [0, 2]", c.Engine.Temperature)
	}
	if len(c.EssentialTools) == 0 {
		return fmt.Errorf("config: essential_tools must not be empty")
	}
	return nil
}

// BridgeConfig converts the stdio section into the bridge's configuration.
func (c *Config) BridgeConfig() mcp.StdioConfig {
	return mcp.StdioConfig{
		Command:         c.Stdio.Command,
		Args:            c.Stdio.Args,
		StartupTimeout:  time.Duration(c.Stdio.StartupTimeoutSeconds) * time.Second,
		RequestTimeout:  time.Duration(c.Stdio.RequestTimeoutSeconds) * time.Second,
		ProtocolVersion: c.Stdio.ProtocolVersion,
		ClientName:      c.Stdio.ClientName,
		ClientVersion:   c.Stdio.ClientVersion,
	}
}

// HTTPBridgeConfig converts the http section into the bridge's configuration.
func (c *Config) HTTPBridgeConfig() mcp.HTTPConfig {
	return mcp.HTTPConfig{
		BaseURL: c.HTTP.BaseURL,
		Timeout: time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
	}
}

// NewBridge constructs the configured transport's bridge. Each call returns
// a fresh bridge: runs never share a channel.
func (c *Config) NewBridge() mcp.Bridge {
	if c.Transport == TransportHTTP {
		return mcp.NewHTTPBridge(c.HTTPBridgeConfig())
	}
	return mcp.NewStdioBridge(c.BridgeConfig())
}
