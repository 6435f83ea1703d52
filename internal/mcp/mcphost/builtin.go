package mcphost

import (
	"context"
	"fmt"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

// builtinServerName is the pseudo server name for in-process tools.
const builtinServerName = "__builtin__"

// BuiltinTool is a tool implemented as an in-process Go function.
//
// Built-in tools skip the MCP protocol round-trip; ExecuteTool calls the
// Handler directly. They are otherwise treated like external tools, with the
// same budget enforcement and latency tracking.
type BuiltinTool struct {
	// Definition is the tool's LLM-facing schema.
	Definition llm.ToolDefinition

	// Handler executes the tool. args is a JSON object string ("{}" for
	// parameter-less tools). A non-nil error marks the result as an error.
	Handler func(ctx context.Context, args string) (string, error)

	// DeclaredP50 is the estimated median latency in milliseconds, used for
	// initial tier assignment before calibration.
	DeclaredP50 int64

	// DeclaredMax is the estimated worst-case latency in milliseconds.
	DeclaredMax int64
}

// RegisterBuiltin registers an in-process tool, replacing any existing tool
// with the same name. The initial tier follows DeclaredP50 using the same
// thresholds as measured tiers. Safe for concurrent use.
func (h *Host) RegisterBuiltin(tool BuiltinTool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("mcp host: builtin tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp host: builtin tool %q must have a non-nil handler", tool.Definition.Name)
	}

	entry := toolEntry{
		def:           tool.Definition,
		serverName:    builtinServerName,
		declaredP50Ms: tool.DeclaredP50,
		declaredMaxMs: tool.DeclaredMax,
		tier:          tierForP50(tool.DeclaredP50),
		samples:       newLatencyWindow(defaultWindowSize),
		builtinFn:     tool.Handler,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[tool.Definition.Name] = entry
	return nil
}
