// Package tools defines the shared [Tool] type used by the built-in MCP
// tool packages. Each subpackage exports a constructor returning a slice of
// [Tool] values ready for registration with the MCP host.
package tools

import (
	"context"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

// Tool is a built-in tool ready for registration with the MCP host.
type Tool struct {
	// Definition is the tool's LLM-facing schema: name, description, and
	// JSON Schema parameters.
	Definition llm.ToolDefinition

	// Handler executes the tool with a JSON object args string and returns
	// a JSON-encoded result, or a descriptive error. Implementations must
	// be safe for concurrent use and respect context cancellation.
	Handler func(ctx context.Context, args string) (string, error)

	// DeclaredP50 is the declared median execution latency in milliseconds,
	// used for initial budget tier assignment before calibration.
	DeclaredP50 int64

	// DeclaredMax is the declared worst-case latency in milliseconds.
	DeclaredMax int64
}
