// Package memories implements the memory tools: adding text/photo
// memories to events, listing them, and editing them afterwards.
package memories

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

// Presigner turns stored photo keys into fetchable URLs. Satisfied by
// the media S3 store.
type Presigner interface {
	PresignURL(ctx context.Context, key string) (string, error)
}

// AddTool attaches a memory to an event. A photo arriving with the
// current message is picked up from the execution context.
type AddTool struct {
	store storage.Store
}

// NewAddTool creates the add_memory tool.
func NewAddTool(store storage.Store) *AddTool {
	return &AddTool{store: store}
}

func (t *AddTool) Name() string {
	return "add_memory"
}

func (t *AddTool) Description() string {
	return "Add a memory (text and/or image) to an event"
}

func (t *AddTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "event_id": {"type": "integer", "description": "ID of the event"},
    "text": {"type": "string", "description": "Text content of the memory"},
    "has_image": {"type": "boolean", "description": "Whether this memory includes an image"}
  },
  "required": ["event_id"]
}`)
}

func (t *AddTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	exec := tools.ExecutionFromContext(ctx)
	if exec == nil || exec.User == nil {
		return &models.ToolResult{Content: "no user in execution context", IsError: true}, nil
	}

	var params struct {
		EventID  int64  `json:"event_id"`
		Text     string `json:"text"`
		HasImage bool   `json:"has_image"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}

	photoKey := ""
	if params.HasImage || exec.HasPhoto {
		photoKey = exec.PhotoKey
	}
	text := params.Text
	if text == "" && photoKey != "" {
		text = exec.PhotoDescription
	}
	if text == "" && photoKey == "" {
		return &models.ToolResult{Content: "memory needs text or a photo", IsError: true}, nil
	}

	_, err := t.store.AddMemory(ctx, &models.Memory{
		EventID:  params.EventID,
		UserID:   exec.User.ID,
		Text:     text,
		PhotoKey: photoKey,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			return &models.ToolResult{
				Content: "Could not add memory. Make sure you're in this event.",
				IsError: true,
			}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to add memory: %v", err), IsError: true}, nil
	}

	msg := fmt.Sprintf("Memory added to event #%d!", params.EventID)
	if photoKey != "" {
		msg += " (photo attached)"
	}
	return &models.ToolResult{Content: msg}, nil
}

// ListTool lists an event's memories. Photo keys resolve to presigned
// URLs when a presigner is configured.
type ListTool struct {
	store     storage.Store
	presigner Presigner
}

// NewListTool creates the list_memories tool. presigner may be nil.
func NewListTool(store storage.Store, presigner Presigner) *ListTool {
	return &ListTool{store: store, presigner: presigner}
}

func (t *ListTool) Name() string {
	return "list_memories"
}

func (t *ListTool) Description() string {
	return "List memories from a specific event"
}

func (t *ListTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "event_id": {"type": "integer", "description": "ID of the event"}
  },
  "required": ["event_id"]
}`)
}

func (t *ListTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	var params struct {
		EventID int64 `json:"event_id"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}

	memories, err := t.store.ListMemories(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			return &models.ToolResult{Content: "Event not found.", IsError: true}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to list memories: %v", err), IsError: true}, nil
	}
	if len(memories) == 0 {
		return &models.ToolResult{
			Content: fmt.Sprintf("No memories in event #%d yet.", params.EventID),
		}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Memories in event #%d:\n", params.EventID)
	for _, memory := range memories {
		fmt.Fprintf(&sb, "#%d", memory.ID)
		if memory.Text != "" {
			sb.WriteString(" " + memory.Text)
		}
		if memory.PhotoKey != "" {
			url := memory.PhotoKey
			if t.presigner != nil {
				if presigned, err := t.presigner.PresignURL(ctx, memory.PhotoKey); err == nil {
					url = presigned
				}
			}
			sb.WriteString(" [photo: " + url + "]")
		}
		sb.WriteString("\n")
	}
	return &models.ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}

// UpdateTool edits an existing memory's text.
type UpdateTool struct {
	store storage.Store
}

// NewUpdateTool creates the update_memory tool.
func NewUpdateTool(store storage.Store) *UpdateTool {
	return &UpdateTool{store: store}
}

func (t *UpdateTool) Name() string {
	return "update_memory"
}

func (t *UpdateTool) Description() string {
	return "Update the text content of an existing memory. Useful for enriching memories with additional context after they've been created."
}

func (t *UpdateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "memory_id": {"type": "integer", "description": "ID of the memory to update"},
    "text": {"type": "string", "description": "New or additional text content for the memory"}
  },
  "required": ["memory_id", "text"]
}`)
}

func (t *UpdateTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	var params struct {
		MemoryID int64  `json:"memory_id"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	if strings.TrimSpace(params.Text) == "" {
		return &models.ToolResult{Content: "Must provide text to update", IsError: true}, nil
	}

	if err := t.store.UpdateMemory(ctx, params.MemoryID, params.Text); err != nil {
		if errors.Is(err, storage.ErrMemoryNotFound) {
			return &models.ToolResult{
				Content: fmt.Sprintf("Memory #%d not found or you don't have permission to update it", params.MemoryID),
				IsError: true,
			}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to update memory: %v", err), IsError: true}, nil
	}

	return &models.ToolResult{
		Content: fmt.Sprintf("Memory #%d updated (text)", params.MemoryID),
	}, nil
}
