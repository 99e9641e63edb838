// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcp implements the protocol bridge to a browser-automation tool
// backend speaking the Model Context Protocol, plus the tool catalog and the
// tool executor built on top of it.
//
// The bridge is a one-request-at-a-time request/response exchange over a
// duplex channel. Two transports realize the same contract: a spawned
// subprocess speaking line-delimited JSON-RPC over stdio (StdioBridge) and a
// long-lived HTTP service (HTTPBridge). Which one a deployment uses is a
// configuration decision, never inferred inside business logic.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSON-RPC methods understood by the tool backend.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// protocolVersionTag is the JSON-RPC version tag carried by every envelope.
const protocolVersionTag = "2.0"

// Bridge is the duplex channel to the tool backend.
//
// Description:
//
//	Open establishes the channel (spawning the backend process or probing
//	the remote service) and performs the protocol handshake. Send issues a
//	single request and blocks until the correlated response arrives. Close
//	tears the channel down; it is idempotent and safe to call after a
//	failed Open.
//
//	The contract permits exactly one outstanding request per bridge. An
//	out-of-order or mismatched correlation id is a protocol violation, not
//	a pipelining opportunity.
//
// Thread Safety: Implementations serialize Send internally; Open and Close
// must not race Send.
type Bridge interface {
	// Open establishes the channel and performs the initialize handshake.
	// Returns a *ConnectionError if the channel cannot be established
	// within the configured startup window.
	Open(ctx context.Context) error

	// Send writes one request envelope and blocks for the matching
	// response. Returns a *ProtocolError for malformed responses,
	// correlation-id mismatches, explicit backend error objects, and
	// unexpected channel closure.
	Send(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Close terminates the channel. Idempotent.
	Close() error
}

// request is the JSON-RPC request envelope sent to the backend.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// response is the JSON-RPC response envelope read from the backend.
//
// Presence of Error always means request failure, regardless of whether
// Result is also populated.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the backend's explicit error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

// initializeParams is the handshake payload declaring protocol version and
// client identity.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// callToolParams is the params payload for tools/call.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ConnectionError indicates the channel could not be established: the
// backend process failed to start, the handshake did not complete within
// the startup window, or the remote service is unreachable. Always fatal to
// the current run.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp: connection: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates a violation of the request/response contract after
// the channel was established: a malformed response, a correlation id that
// does not match the outstanding request, an explicit backend error object,
// a per-request timeout, or silent channel closure. Always fatal to the
// current run; the bridge never retries.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mcp: protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// protocolErrorf builds a *ProtocolError with a formatted cause.
func protocolErrorf(op, format string, args ...any) *ProtocolError {
	return &ProtocolError{Op: op, Err: fmt.Errorf(format, args...)}
}
