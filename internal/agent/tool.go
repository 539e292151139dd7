package agent

import (
	"context"
	"encoding/json"

	"github.com/mementolabs/memento/pkg/models"
)

// Tool is an action the model can request during a conversation.
//
// Execute reports tool-level failures through ToolResult.IsError rather
// than the error return; the error return is reserved for infrastructure
// failures the registry itself must handle.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Description returns a model-facing description of what the tool does.
	Description() string

	// Schema returns the JSON schema for the tool's input.
	Schema() json.RawMessage

	// Execute runs the tool with the given JSON input.
	Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error)
}
