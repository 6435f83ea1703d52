package mcphost

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/veilgate/ludens/internal/mcp"
	"github.com/veilgate/ludens/pkg/provider/llm"
)

func newBuiltin(name string, p50 int64, handler func(ctx context.Context, args string) (string, error)) BuiltinTool {
	return BuiltinTool{
		Definition: llm.ToolDefinition{
			Name:       name,
			Parameters: map[string]any{"type": "object"},
		},
		Handler:     handler,
		DeclaredP50: p50,
	}
}

func echoHandler(_ context.Context, args string) (string, error) {
	return args, nil
}

func TestRegisterBuiltinValidation(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	if err := h.RegisterBuiltin(BuiltinTool{Handler: echoHandler}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := h.RegisterBuiltin(BuiltinTool{Definition: llm.ToolDefinition{Name: "x"}}); err == nil {
		t.Error("expected error for nil handler")
	}
}

func TestExecuteBuiltin(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	if err := h.RegisterBuiltin(newBuiltin("echo", 5, echoHandler)); err != nil {
		t.Fatal(err)
	}

	result, err := h.ExecuteTool(context.Background(), "echo", `{"hello":"world"}`)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("unexpected tool error: %s", result.Content)
	}
	if result.Content != `{"hello":"world"}` {
		t.Errorf("content = %q", result.Content)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	if _, err := h.ExecuteTool(context.Background(), "nope", "{}"); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestExecuteHandlerErrorBecomesToolResult(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	boom := errors.New("boom")
	err := h.RegisterBuiltin(newBuiltin("fail", 5, func(context.Context, string) (string, error) {
		return "", boom
	}))
	if err != nil {
		t.Fatal(err)
	}

	result, err := h.ExecuteTool(context.Background(), "fail", "{}")
	if err != nil {
		t.Fatalf("transport error not expected: %v", err)
	}
	if !result.IsError || result.Content != "boom" {
		t.Errorf("result = %+v", result)
	}
}

func TestAvailableToolsFiltersByTier(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	for _, tool := range []BuiltinTool{
		newBuiltin("fast", 10, echoHandler),
		newBuiltin("standard", 900, echoHandler),
		newBuiltin("deep", 3000, echoHandler),
	} {
		if err := h.RegisterBuiltin(tool); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		tier mcp.BudgetTier
		want []string
	}{
		{tier: mcp.BudgetFast, want: []string{"fast"}},
		{tier: mcp.BudgetStandard, want: []string{"fast", "standard"}},
		{tier: mcp.BudgetDeep, want: []string{"fast", "standard", "deep"}},
	}
	for _, tt := range tests {
		t.Run(tt.tier.String(), func(t *testing.T) {
			defs := h.AvailableTools(tt.tier)
			if len(defs) != len(tt.want) {
				t.Fatalf("tools = %d, want %d", len(defs), len(tt.want))
			}
			for i, name := range tt.want {
				if defs[i].Name != name {
					t.Errorf("tools[%d] = %q, want %q (latency-sorted)", i, defs[i].Name, name)
				}
			}
		})
	}
}

func TestErrorRateDemotesTier(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	err := h.RegisterBuiltin(newBuiltin("flaky", 5, func(context.Context, string) (string, error) {
		return "", errors.New("always fails")
	}))
	if err != nil {
		t.Fatal(err)
	}

	for range 10 {
		if _, err := h.ExecuteTool(context.Background(), "flaky", "{}"); err != nil {
			t.Fatal(err)
		}
	}

	// 100% error rate: demoted from fast even though latency is tiny.
	if defs := h.AvailableTools(mcp.BudgetFast); len(defs) != 0 {
		t.Errorf("degraded tool still visible on fast tier: %+v", defs)
	}
	if defs := h.AvailableTools(mcp.BudgetStandard); len(defs) != 1 {
		t.Errorf("degraded tool missing on standard tier: %+v", defs)
	}
}

func TestCalibrateRecordsMeasurements(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	if err := h.RegisterBuiltin(newBuiltin("probe-me", 5, echoHandler)); err != nil {
		t.Fatal(err)
	}

	if err := h.Calibrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.mu.RLock()
	entry := h.tools["probe-me"]
	h.mu.RUnlock()
	if entry.callCount != 1 {
		t.Errorf("callCount = %d, want 1", entry.callCount)
	}
}

func TestCalibrateRespectsCancellation(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	blocked := make(chan struct{})
	err := h.RegisterBuiltin(newBuiltin("slow", 5, func(ctx context.Context, _ string) (string, error) {
		select {
		case <-blocked:
		case <-ctx.Done():
		}
		return "", ctx.Err()
	}))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	defer close(blocked)

	done := make(chan error, 1)
	go func() { done <- h.Calibrate(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("calibrate did not return after context cancellation")
	}
}

func TestRegisterServerValidation(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  mcp.ServerConfig
	}{
		{name: "empty name", cfg: mcp.ServerConfig{Transport: mcp.TransportStdio, Command: "/bin/true"}},
		{name: "bad transport", cfg: mcp.ServerConfig{Name: "x", Transport: "carrier-pigeon"}},
		{name: "stdio without command", cfg: mcp.ServerConfig{Name: "x", Transport: mcp.TransportStdio}},
		{name: "http without url", cfg: mcp.ServerConfig{Name: "x", Transport: mcp.TransportStreamableHTTP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.RegisterServer(ctx, tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLatencyHintsFromSchema(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"_metadata": map[string]any{
				"estimated_duration_ms": float64(250),
				"max_duration_ms":       float64(900),
			},
		},
	}
	data, _ := json.Marshal(schema)
	var roundTripped map[string]any
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatal(err)
	}

	got := schemaToMap(roundTripped)
	props := got["properties"].(map[string]any)
	meta := props["_metadata"].(map[string]any)
	if intFromAny(meta["estimated_duration_ms"]) != 250 {
		t.Error("estimated_duration_ms not extracted")
	}
	if intFromAny(meta["max_duration_ms"]) != 900 {
		t.Error("max_duration_ms not extracted")
	}
}
