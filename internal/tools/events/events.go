// Package events implements the event lifecycle tools: create, join,
// list, invite links, and summaries.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/tools"
	"github.com/mementolabs/memento/pkg/models"
)

// CreateTool creates a new event. The creator joins automatically.
type CreateTool struct {
	store storage.Store
}

// NewCreateTool creates the create_event tool.
func NewCreateTool(store storage.Store) *CreateTool {
	return &CreateTool{store: store}
}

func (t *CreateTool) Name() string {
	return "create_event"
}

func (t *CreateTool) Description() string {
	return "Create a new event for storing memories"
}

func (t *CreateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "description": "Name of the event"},
    "description": {"type": "string", "description": "Description of the event"},
    "event_date": {"type": "string", "description": "Date of the event (ISO format)"}
  },
  "required": ["name"]
}`)
}

func (t *CreateTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	exec := tools.ExecutionFromContext(ctx)
	if exec == nil || exec.User == nil {
		return &models.ToolResult{Content: "no user in execution context", IsError: true}, nil
	}

	var params struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		EventDate   string `json:"event_date"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return &models.ToolResult{Content: "name is required", IsError: true}, nil
	}

	event, err := t.store.CreateEvent(ctx, &models.Event{
		Name:        name,
		Description: params.Description,
		EventDate:   params.EventDate,
		CreatorID:   exec.User.ID,
	})
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to create event: %v", err), IsError: true}, nil
	}

	return &models.ToolResult{
		Content: fmt.Sprintf("Event '%s' created with ID #%d!", event.Name, event.ID),
	}, nil
}

// JoinTool adds the requesting user to an existing event.
type JoinTool struct {
	store storage.Store
}

// NewJoinTool creates the join_event tool.
func NewJoinTool(store storage.Store) *JoinTool {
	return &JoinTool{store: store}
}

func (t *JoinTool) Name() string {
	return "join_event"
}

func (t *JoinTool) Description() string {
	return "Add the user to an existing event"
}

func (t *JoinTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "event_id": {"type": "integer", "description": "ID of the event to join"}
  },
  "required": ["event_id"]
}`)
}

func (t *JoinTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	exec := tools.ExecutionFromContext(ctx)
	if exec == nil || exec.User == nil {
		return &models.ToolResult{Content: "no user in execution context", IsError: true}, nil
	}

	var params struct {
		EventID int64 `json:"event_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}

	if err := t.store.JoinEvent(ctx, params.EventID, exec.User.ID); err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			return &models.ToolResult{Content: "Event not found.", IsError: true}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to join event: %v", err), IsError: true}, nil
	}

	return &models.ToolResult{
		Content: fmt.Sprintf("Joined event #%d!", params.EventID),
	}, nil
}

// ListTool lists the events the requesting user belongs to.
type ListTool struct {
	store storage.Store
}

// NewListTool creates the list_events tool.
func NewListTool(store storage.Store) *ListTool {
	return &ListTool{store: store}
}

func (t *ListTool) Name() string {
	return "list_events"
}

func (t *ListTool) Description() string {
	return "List all events the user is part of"
}

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {}
}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	exec := tools.ExecutionFromContext(ctx)
	if exec == nil || exec.User == nil {
		return &models.ToolResult{Content: "no user in execution context", IsError: true}, nil
	}

	events, err := t.store.ListEvents(ctx, exec.User.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to list events: %v", err), IsError: true}, nil
	}
	if len(events) == 0 {
		return &models.ToolResult{Content: "No events yet."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your events:\n")
	for _, event := range events {
		sb.WriteString(fmt.Sprintf("#%d %s", event.ID, event.Name))
		if event.Description != "" {
			sb.WriteString(" - " + event.Description)
		}
		if event.EventDate != "" {
			sb.WriteString(" (" + event.EventDate + ")")
		}
		sb.WriteString("\n")
	}
	return &models.ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}
