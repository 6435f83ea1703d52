// Package mcphost implements [mcp.Host] on the official MCP Go SDK.
//
// It connects to external MCP servers over stdio or streamable-HTTP, hosts
// in-process built-in tools registered via [Host.RegisterBuiltin], enforces
// latency-based budget tiers, and tracks per-tool health through rolling
// latency windows.
//
// Typical usage:
//
//	h := mcphost.New()
//
//	err := h.RegisterServer(ctx, mcp.ServerConfig{
//	    Name:      "lore",
//	    Transport: mcp.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-lore-server",
//	})
//
//	for _, t := range gametools.Tools(eng, store) {
//	    h.RegisterBuiltin(t)
//	}
//
//	tools := h.AvailableTools(mcp.BudgetFast)
//	result, err := h.ExecuteTool(ctx, "roll_dice", `{"expression":"1d20"}`)
package mcphost

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/veilgate/ludens/internal/mcp"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

// defaultWindowSize caps each tool's latency sample window.
const defaultWindowSize = 100

// toolEntry holds all registry state for one tool.
type toolEntry struct {
	def           llm.ToolDefinition
	serverName    string
	declaredP50Ms int64
	declaredMaxMs int64
	measuredP50Ms int64
	measuredP99Ms int64
	callCount     int64
	errorCount    int64
	tier          mcp.BudgetTier
	degraded      bool
	samples       *latencyWindow

	// builtinFn is non-nil for in-process tools.
	builtinFn func(ctx context.Context, args string) (string, error)
}

type serverConn struct {
	session *mcpsdk.ClientSession
}

// Host is the concrete [mcp.Host]. The zero value is not usable; construct
// with [New].
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry
	servers map[string]serverConn

	// One SDK client manages all server sessions.
	client *mcpsdk.Client

	enforcer budgetEnforcer
}

// Compile-time interface check.
var _ mcp.Host = (*Host)(nil)

// New creates a ready-to-use Host.
func New() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "ludens-mcphost", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]serverConn),
		client:  client,
	}
}

// RegisterServer implements [mcp.Host]. For stdio transport, cfg.Command is
// split on whitespace into executable plus args and cfg.Env is injected into
// the subprocess environment. For streamable-HTTP, cfg.URL is the endpoint.
func (h *Host) RegisterServer(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp host: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport

	switch cfg.Transport {
	case mcp.TransportStdio:
		parts := strings.Fields(cfg.Command)
		if len(parts) == 0 {
			return fmt.Errorf("mcp host: stdio server %q requires a non-empty Command", cfg.Name)
		}
		cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp host: streamable-http server %q requires a non-empty URL", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: connect to server %q: %w", cfg.Name, err)
	}

	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[cfg.Name]; ok {
		_ = old.session.Close()
		for name, t := range h.tools {
			if t.serverName == cfg.Name {
				delete(h.tools, name)
			}
		}
	}

	h.servers[cfg.Name] = serverConn{session: session}

	for _, t := range discovered {
		h.tools[t.Name] = importedToolEntry(t, cfg.Name)
	}

	return nil
}

// importedToolEntry converts an SDK tool descriptor into registry state.
func importedToolEntry(t mcpsdk.Tool, serverName string) toolEntry {
	p50, maxMs := latencyHints(t)

	def := llm.ToolDefinition{
		Name:                t.Name,
		Description:         t.Description,
		Parameters:          schemaToMap(t.InputSchema),
		EstimatedDurationMs: int(p50),
		MaxDurationMs:       int(maxMs),
	}

	return toolEntry{
		def:           def,
		serverName:    serverName,
		declaredP50Ms: p50,
		declaredMaxMs: maxMs,
		tier:          tierForP50(p50),
		samples:       newLatencyWindow(defaultWindowSize),
	}
}

// latencyHints reads estimated_duration_ms and max_duration_ms from the
// tool's schema _metadata property or from a JSON blob embedded in its
// description. Servers that declare neither get 0, which maps to the
// fastest tier until calibration says otherwise.
func latencyHints(t mcpsdk.Tool) (p50Ms, maxMs int64) {
	if schema := schemaToMap(t.InputSchema); schema != nil {
		if props, ok := schema["properties"].(map[string]any); ok {
			if meta, ok := props["_metadata"].(map[string]any); ok {
				p50Ms = intFromAny(meta["estimated_duration_ms"])
				maxMs = intFromAny(meta["max_duration_ms"])
			}
		}
	}

	if p50Ms == 0 {
		start := strings.Index(t.Description, "{")
		end := strings.LastIndex(t.Description, "}")
		if start >= 0 && end > start {
			var m map[string]any
			if err := json.Unmarshal([]byte(t.Description[start:end+1]), &m); err == nil {
				p50Ms = intFromAny(m["estimated_duration_ms"])
				maxMs = intFromAny(m["max_duration_ms"])
			}
		}
	}

	return p50Ms, maxMs
}

func intFromAny(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// schemaToMap normalises any schema representation into a map[string]any.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// AvailableTools implements [mcp.Host].
func (h *Host) AvailableTools(tier mcp.BudgetTier) []llm.ToolDefinition {
	h.mu.RLock()
	entries := make([]toolEntry, 0, len(h.tools))
	for _, e := range h.tools {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	return h.enforcer.filter(entries, tier)
}

// ExecuteTool implements [mcp.Host].
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: tool %q not found", name)
	}

	start := time.Now()

	var result *mcp.ToolResult
	var execErr error

	if entry.builtinFn != nil {
		output, err := entry.builtinFn(ctx, args)
		if err != nil {
			result = &mcp.ToolResult{Content: err.Error(), IsError: true}
		} else {
			result = &mcp.ToolResult{Content: output}
		}
	} else {
		result, execErr = h.callServerTool(ctx, entry, args)
	}

	durationMs := time.Since(start).Milliseconds()
	isError := execErr != nil || (result != nil && result.IsError)

	h.record(name, durationMs, isError)

	if execErr != nil {
		return nil, execErr
	}
	result.DurationMs = durationMs
	return result, nil
}

// callServerTool routes a call to the owning server session.
func (h *Host) callServerTool(ctx context.Context, entry toolEntry, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	conn, ok := h.servers[entry.serverName]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return nil, fmt.Errorf("mcp host: invalid args JSON for tool %q: %w", entry.def.Name, err)
		}
	}

	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp host: call to tool %q failed: %w", entry.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}

	return &mcp.ToolResult{
		Content: sb.String(),
		IsError: callResult.IsError,
	}, nil
}

// record stores one measurement and re-evaluates the tool's tier. A tool
// whose windowed error rate exceeds 30% is marked degraded and demoted one
// tier.
func (h *Host) record(name string, durationMs int64, isError bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tools[name]
	if !ok {
		return
	}

	entry.samples.Record(durationMs, isError)
	entry.callCount++
	if isError {
		entry.errorCount++
	}

	entry.measuredP50Ms = entry.samples.P50()
	entry.measuredP99Ms = entry.samples.P99()

	newTier := tierForP50(entry.measuredP50Ms)

	entry.degraded = entry.samples.ErrorRate() > 0.3
	if entry.degraded && newTier < mcp.BudgetDeep {
		newTier++
	}

	entry.tier = newTier
	h.tools[name] = entry
}

// tierForP50 maps a P50 latency to a budget tier.
func tierForP50(p50Ms int64) mcp.BudgetTier {
	switch {
	case p50Ms <= 500:
		return mcp.BudgetFast
	case p50Ms <= 1500:
		return mcp.BudgetStandard
	default:
		return mcp.BudgetDeep
	}
}

// Close implements [mcp.Host].
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, conn := range h.servers {
		if err := conn.session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp host: close server %q: %w", name, err)
		}
		delete(h.servers, name)
	}

	h.tools = make(map[string]toolEntry)

	return firstErr
}
