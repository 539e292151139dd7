package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mementolabs/memento/pkg/models"
)

// Registry manages available tools with thread-safe registration and
// lookup. Tool failures of any kind surface as error-flagged results;
// the registry never lets a single bad tool call abort a conversation.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
	order []string
}

type registeredTool struct {
	tool     Tool
	compiled *jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*registeredTool),
	}
}

// Register adds a tool to the registry by its name.
// If a tool with the same name already exists, it is replaced; the
// original registration position is kept.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = &registeredTool{
		tool:     tool,
		compiled: compileToolSchema(name, tool.Schema()),
	}
}

// Get returns a tool by name and whether it was found.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.tool, true
}

// Definitions returns all registered tools as provider-facing
// definitions, in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		rt := r.tools[name]
		defs = append(defs, ToolDefinition{
			Name:        name,
			Description: rt.tool.Description(),
			InputSchema: rt.tool.Schema(),
		})
	}
	return defs
}

// Execute runs a tool by name with the given JSON input.
//
// Unknown tools, schema violations, execution errors, and panics all
// come back as results with IsError set; the error return is always nil
// so callers can feed the result straight back to the model.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (*models.ToolResult, error) {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return &models.ToolResult{
			Content: "Unknown tool: " + name,
			IsError: true,
		}, nil
	}

	if err := validateToolInput(rt.compiled, input); err != nil {
		return &models.ToolResult{
			Content: "Tool execution error: " + err.Error(),
			IsError: true,
		}, nil
	}

	result, err := executeSafely(ctx, rt.tool, input)
	if err != nil {
		return &models.ToolResult{
			Content: "Tool execution error: " + err.Error(),
			IsError: true,
		}, nil
	}
	if result == nil {
		result = &models.ToolResult{}
	}
	return result, nil
}

// executeSafely runs the tool and converts panics into errors.
func executeSafely(ctx context.Context, tool Tool, input json.RawMessage) (result *models.ToolResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("%w: %v", ErrToolPanic, rec)
		}
	}()
	return tool.Execute(ctx, input)
}

// compileToolSchema compiles a tool's schema at registration time.
// A nil or malformed schema disables validation for that tool rather
// than rejecting the registration.
func compileToolSchema(name string, schema json.RawMessage) *jsonschema.Schema {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(schema))
	if err != nil {
		return nil
	}
	return compiled
}

func validateToolInput(schema *jsonschema.Schema, input json.RawMessage) error {
	if schema == nil {
		return nil
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}

	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		return fmt.Errorf("decode tool input: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}
