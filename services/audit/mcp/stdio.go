// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// maxLineBytes bounds a single response line. Tool outputs (DOM snapshots,
// network waterfalls) can be large but are still single JSON lines.
const maxLineBytes = 16 * 1024 * 1024

// StdioConfig configures the subprocess transport.
type StdioConfig struct {
	// Command is the executable that launches the tool backend (e.g. "npx").
	Command string

	// Args are passed to Command (e.g. the chrome-devtools-mcp package and
	// its --headless / --isolated flags).
	Args []string

	// StartupTimeout bounds process spawn plus the initialize handshake.
	StartupTimeout time.Duration

	// RequestTimeout bounds the wait for a single response line.
	RequestTimeout time.Duration

	// ProtocolVersion is declared in the initialize handshake.
	ProtocolVersion string

	// ClientName and ClientVersion identify this client to the backend.
	ClientName    string
	ClientVersion string
}

// DefaultStdioConfig returns the stock Chrome DevTools backend configuration.
func DefaultStdioConfig() StdioConfig {
	return StdioConfig{
		Command:         "npx",
		Args:            []string{"-y", "chrome-devtools-mcp@latest", "--headless=true", "--isolated=true"},
		StartupTimeout:  30 * time.Second,
		RequestTimeout:  60 * time.Second,
		ProtocolVersion: "2024-11-05",
		ClientName:      "webaudit-agent",
		ClientVersion:   "1.0.0",
	}
}

// readLine is one line pumped off the backend's stdout, or the terminal
// read error (io.EOF for a clean close).
type readLine struct {
	data []byte
	err  error
}

// StdioBridge speaks line-delimited JSON-RPC to a spawned backend process
// over its standard input/output.
//
// Description:
//
//	Open spawns the process and performs the initialize handshake within
//	StartupTimeout. Send assigns a monotonically increasing correlation id,
//	writes one framed request line, and blocks until the matching response
//	line arrives (bounded by RequestTimeout). Close kills the process and
//	is idempotent.
//
//	A dedicated goroutine pumps stdout lines into a channel so Send can
//	select across response arrival, context cancellation, and the request
//	timeout without leaking a blocked read.
//
// Thread Safety: Send is serialized by an internal mutex; only one request
// is ever outstanding.
type StdioBridge struct {
	cfg StdioConfig

	// start spawns the backend and returns its stdin/stdout. Overridden in
	// tests to wire in-memory pipes instead of a real process.
	start func(ctx context.Context) (io.WriteCloser, io.ReadCloser, error)

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan readLine
	nextID int64
	opened bool
	closed bool
}

// NewStdioBridge creates a bridge that will spawn the configured backend
// process on Open.
func NewStdioBridge(cfg StdioConfig) *StdioBridge {
	b := &StdioBridge{cfg: cfg}
	b.start = b.startProcess
	return b
}

func (b *StdioBridge) startProcess(ctx context.Context) (io.WriteCloser, io.ReadCloser, error) {
	// The process must outlive the Open context, so it is not bound to ctx.
	// #nosec G204 -- command and args come from operator configuration.
	cmd := exec.Command(b.cfg.Command, b.cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("starting %s: %w", b.cfg.Command, err)
	}
	b.cmd = cmd
	return stdin, stdout, nil
}

// Open implements Bridge.Open.
//
// Description:
//
//	Spawns the backend process, starts the stdout pump, and performs the
//	initialize handshake declaring protocol version and client identity.
//	The whole sequence is bounded by StartupTimeout; on any failure the
//	partially opened channel is torn down before returning.
//
// Outputs:
//   - error: *ConnectionError if the channel could not be established.
//
// Thread Safety: Must not be called concurrently with Send or Close.
func (b *StdioBridge) Open(ctx context.Context) error {
	b.mu.Lock()
	if b.opened && !b.closed {
		b.mu.Unlock()
		return nil
	}
	if b.closed {
		b.mu.Unlock()
		return &ConnectionError{Op: "open", Err: errors.New("bridge already closed")}
	}

	stdin, stdout, err := b.start(ctx)
	if err != nil {
		b.mu.Unlock()
		return &ConnectionError{Op: "start backend", Err: err}
	}
	b.stdin = stdin
	b.lines = make(chan readLine, 1)
	go pumpLines(stdout, b.lines)
	b.opened = true
	b.mu.Unlock()

	slog.Info("MCP backend process started",
		slog.String("command", b.cfg.Command),
	)

	handshakeCtx, cancel := context.WithTimeout(ctx, b.cfg.StartupTimeout)
	defer cancel()

	params := initializeParams{
		ProtocolVersion: b.cfg.ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: clientInfo{
			Name:    b.cfg.ClientName,
			Version: b.cfg.ClientVersion,
		},
	}
	if _, err := b.Send(handshakeCtx, MethodInitialize, params); err != nil {
		// Partial open: tear down so close-after-failed-open is a no-op.
		_ = b.Close()
		return &ConnectionError{Op: "initialize handshake", Err: err}
	}

	slog.Info("MCP handshake completed",
		slog.String("protocol_version", b.cfg.ProtocolVersion),
		slog.String("client", b.cfg.ClientName),
	)
	return nil
}

// pumpLines reads stdout lines into out until the stream ends, then delivers
// the terminal error and closes the channel.
func pumpLines(r io.ReadCloser, out chan<- readLine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		out <- readLine{data: line}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	out <- readLine{err: err}
	close(out)
	_ = r.Close()
}

// Send implements Bridge.Send.
//
// Description:
//
//	Assigns the next correlation id, writes the request as one framed JSON
//	line, and blocks until a response line arrives. The response must carry
//	no error object and an id equal to the request's id; anything else is
//	a *ProtocolError. The wait is bounded by the context and by the
//	configured RequestTimeout.
//
// Thread Safety: Serialized internally; safe for concurrent use, though the
// pipeline only ever has one request in flight.
func (b *StdioBridge) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.opened || b.closed {
		return nil, protocolErrorf(method, "bridge is not open")
	}

	b.nextID++
	id := b.nextID

	payload, err := json.Marshal(request{
		JSONRPC: protocolVersionTag,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, protocolErrorf(method, "marshaling request: %v", err)
	}
	payload = append(payload, '\n')

	slog.Debug("MCP request",
		slog.String("method", method),
		slog.Int64("id", id),
	)

	if _, err := b.stdin.Write(payload); err != nil {
		return nil, protocolErrorf(method, "writing request: %v", err)
	}

	timer := time.NewTimer(b.cfg.RequestTimeout)
	defer timer.Stop()

	var line readLine
	select {
	case line = <-b.lines:
	case <-ctx.Done():
		return nil, &ProtocolError{Op: method, Err: ctx.Err()}
	case <-timer.C:
		return nil, protocolErrorf(method, "timed out after %s waiting for response", b.cfg.RequestTimeout)
	}

	if line.err != nil {
		return nil, protocolErrorf(method, "channel closed before response: %v", line.err)
	}

	var resp response
	if err := json.Unmarshal(line.data, &resp); err != nil {
		return nil, protocolErrorf(method, "malformed response: %v", err)
	}
	if resp.Error != nil {
		return nil, &ProtocolError{Op: method, Err: resp.Error}
	}
	if resp.ID != id {
		return nil, protocolErrorf(method, "correlation id mismatch: got %d, want %d", resp.ID, id)
	}

	slog.Debug("MCP response",
		slog.String("method", method),
		slog.Int64("id", id),
		slog.Int("result_bytes", len(resp.Result)),
	)
	return resp.Result, nil
}

// Close implements Bridge.Close.
//
// Description:
//
//	Closes stdin (signalling the backend to exit) and kills the process if
//	it is still running. Safe to call repeatedly and after a failed Open.
func (b *StdioBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.opened = false

	var firstErr error
	if b.stdin != nil {
		if err := b.stdin.Close(); err != nil {
			firstErr = err
		}
	}
	if b.cmd != nil && b.cmd.Process != nil {
		if err := b.cmd.Process.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
		_ = b.cmd.Wait()
	}
	// A backend that emitted unsolicited lines can leave the pump blocked
	// on its channel send. Drain until the pump closes the channel so it
	// can run to completion once the stream ends.
	if b.lines != nil {
		go func(ch <-chan readLine) {
			for range ch {
			}
		}(b.lines)
		b.lines = nil
	}

	slog.Debug("MCP backend channel closed")
	return firstErr
}
