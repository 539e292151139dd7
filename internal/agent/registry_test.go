package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mementolabs/memento/pkg/models"
)

type stubTool struct {
	name    string
	schema  string
	execute func(ctx context.Context, input json.RawMessage) (*models.ToolResult, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub " + t.name }

func (t *stubTool) Schema() json.RawMessage {
	if t.schema == "" {
		return nil
	}
	return json.RawMessage(t.schema)
}

func (t *stubTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, input)
	}
	return &models.ToolResult{Content: t.name + " ran"}, nil
}

func TestRegistryDefinitionsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "create_event"})
	r.Register(&stubTool{name: "add_memory"})
	r.Register(&stubTool{name: "get_faq"})

	defs := r.Definitions()
	want := []string{"create_event", "add_memory", "get_faq"}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions", len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("definition %d: got %q, want %q", i, defs[i].Name, name)
		}
	}
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "create_event"})
	r.Register(&stubTool{name: "add_memory"})
	r.Register(&stubTool{
		name: "create_event",
		execute: func(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
			return &models.ToolResult{Content: "replacement ran"}, nil
		},
	})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions", len(defs))
	}
	if defs[0].Name != "create_event" {
		t.Errorf("replacement should keep the original position, got %q first", defs[0].Name)
	}

	result, err := r.Execute(context.Background(), "create_event", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "replacement ran" {
		t.Errorf("got %q, the replacement should win", result.Content)
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "no_such_tool", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result")
	}
	if result.Content != "Unknown tool: no_such_tool" {
		t.Errorf("got %q", result.Content)
	}
}

func TestRegistryExecuteToolError(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{
		name: "broken",
		execute: func(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
			return nil, context.DeadlineExceeded
		},
	})

	result, err := r.Execute(context.Background(), "broken", nil)
	if err != nil {
		t.Fatalf("execution errors must not propagate: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result")
	}
	if !strings.HasPrefix(result.Content, "Tool execution error: ") {
		t.Errorf("got %q", result.Content)
	}
}

func TestRegistryExecutePanicIsolated(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{
		name: "panicky",
		execute: func(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
			panic("nil map write")
		},
	})

	result, err := r.Execute(context.Background(), "panicky", nil)
	if err != nil {
		t.Fatalf("panics must not propagate: %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result")
	}
	if !strings.Contains(result.Content, "nil map write") {
		t.Errorf("result should carry the panic value, got %q", result.Content)
	}
}

func TestRegistrySchemaValidation(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{
		name: "create_event",
		schema: `{
			"type": "object",
			"properties": {"name": {"type": "string"}},
			"required": ["name"]
		}`,
	})

	result, err := r.Execute(context.Background(), "create_event", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("missing required field should fail validation")
	}

	result, err = r.Execute(context.Background(), "create_event", json.RawMessage(`{"name": "Cena"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Errorf("valid input rejected: %q", result.Content)
	}
}

func TestRegistryMalformedSchemaDisablesValidation(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "loose", schema: `{"type": ["not", "valid"`})

	result, err := r.Execute(context.Background(), "loose", json.RawMessage(`{"anything": true}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Errorf("tool with unparseable schema should still run: %q", result.Content)
	}
}
