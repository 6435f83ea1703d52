// Package mcp defines the interface for a Model Context Protocol (MCP) host.
//
// The host manages connections to one or more MCP servers, keeps a catalogue
// of available tools keyed by [BudgetTier], and executes tool calls on behalf
// of NPCs. Tools give the AI director structured access to the running world:
// querying object positions, recalling memories, rolling dice.
//
// Lifecycle:
//
//  1. Register servers and built-in tools.
//  2. Optionally call [Host.Calibrate] to measure real tool latencies.
//  3. Use [Host.AvailableTools] to enumerate tools for a budget tier.
//  4. Use [Host.ExecuteTool] to run tools.
//  5. Call [Host.Close] to release connections.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies this server. Must be unique within a [Host].
	Name string

	// Transport selects the connection mechanism.
	Transport Transport

	// Command is the executable path plus optional arguments, used when
	// Transport is [TransportStdio]. Ignored otherwise.
	Command string

	// URL is the endpoint address used when Transport is
	// [TransportStreamableHTTP]. Ignored otherwise.
	URL string

	// Env holds extra environment variables for the server subprocess when
	// Transport is [TransportStdio]. May be nil.
	Env map[string]string
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output, typically JSON, ready for
	// insertion into an LLM context window.
	Content string

	// IsError indicates an application-level error from the tool. The Go
	// error return of [Host.ExecuteTool] covers transport and protocol
	// failures only. When IsError is true, Content holds the message.
	IsError bool

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
}

// Host manages MCP server connections, routes tool calls, and tracks
// per-tool latency for budget tier assignment.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// RegisterServer connects to the server described by cfg and imports its
	// tool catalogue. Re-registering an existing Name replaces the old
	// connection.
	RegisterServer(ctx context.Context, cfg ServerConfig) error

	// AvailableTools returns all tools whose assigned tier is ≤ tier,
	// sorted by estimated latency ascending.
	AvailableTools(tier BudgetTier) []llm.ToolDefinition

	// ExecuteTool calls the named tool with a JSON object args string.
	// "{}" is valid for parameter-less tools. A non-nil *ToolResult is
	// returned even when [ToolResult.IsError] is true.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// Calibrate probes every registered tool, measures round-trip latency,
	// and reassigns budget tiers from the observations.
	Calibrate(ctx context.Context) error

	// Close shuts down all server connections. The Host must not be used
	// after Close returns.
	Close() error
}
