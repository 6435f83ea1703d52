package anyllm

import (
	"context"
	"testing"

	"github.com/veilgate/ludens/pkg/provider/llm"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider string
		model    string
	}{
		{name: "empty provider", provider: "", model: "gpt-4o"},
		{name: "empty model", provider: "openai", model: ""},
		{name: "unknown provider", provider: "clippy", model: "gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.provider, tt.model); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o-mini"}
	req := llm.CompletionRequest{
		SystemPrompt: "You are a merchant.",
		Messages: []llm.Message{
			{Role: "user", Content: "How much for the sword?"},
		},
		Temperature: 0.7,
		MaxTokens:   256,
		Tools: []llm.ToolDefinition{
			{Name: "roll_dice", Description: "Roll dice", Parameters: map[string]any{"type": "object"}},
		},
	}

	params := p.buildParams(req)

	if params.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(params.Messages))
	}
	if params.Messages[0].Content != "You are a merchant." {
		t.Errorf("system message = %q", params.Messages[0].Content)
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 256 {
		t.Errorf("maxTokens = %v", params.MaxTokens)
	}
	if len(params.Tools) != 1 || params.Tools[0].Function.Name != "roll_dice" {
		t.Errorf("tools = %+v", params.Tools)
	}
}

func TestBuildParamsOmitsZeroValues(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o"}
	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})

	if params.Temperature != nil {
		t.Errorf("temperature should be unset, got %v", *params.Temperature)
	}
	if params.MaxTokens != nil {
		t.Errorf("maxTokens should be unset, got %v", *params.MaxTokens)
	}
}

func TestCountTokens(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o"}
	// 8 chars -> 2 tokens, plus 4 per-message overhead.
	got, err := p.CountTokens(context.Background(), []llm.Message{
		{Role: "user", Content: "12345678"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != 6 {
		t.Errorf("tokens = %d, want 6", got)
	}
}

func TestModelCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model         string
		wantWindow    int
		wantToolCalls bool
	}{
		{model: "gpt-4o-mini", wantWindow: 128_000, wantToolCalls: true},
		{model: "claude-3-5-sonnet-latest", wantWindow: 200_000, wantToolCalls: true},
		{model: "o1-mini", wantWindow: 128_000, wantToolCalls: false},
		{model: "gemini-1.5-pro", wantWindow: 2_097_152, wantToolCalls: true},
		{model: "some-unknown-model", wantWindow: 128_000, wantToolCalls: true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			t.Parallel()
			caps := modelCapabilities(tt.model)
			if caps.ContextWindow != tt.wantWindow {
				t.Errorf("context window = %d, want %d", caps.ContextWindow, tt.wantWindow)
			}
			if caps.SupportsToolCalling != tt.wantToolCalls {
				t.Errorf("tool calling = %v, want %v", caps.SupportsToolCalling, tt.wantToolCalls)
			}
		})
	}
}
