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

// SummarizeTool builds a textual summary of an event from stored data:
// counts, members, and memory highlights. No model call involved.
type SummarizeTool struct {
	store storage.Store
}

// NewSummarizeTool creates the summarize_event tool.
func NewSummarizeTool(store storage.Store) *SummarizeTool {
	return &SummarizeTool{store: store}
}

func (t *SummarizeTool) Name() string {
	return "summarize_event"
}

func (t *SummarizeTool) Description() string {
	return "Generate a comprehensive summary of an event including all memories, photos, and insights"
}

func (t *SummarizeTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "event_id": {"type": "integer", "description": "ID of the event to summarize"}
  },
  "required": ["event_id"]
}`)
}

func (t *SummarizeTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
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

	event, err := t.store.GetEvent(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			return &models.ToolResult{Content: fmt.Sprintf("Event #%d not found.", params.EventID), IsError: true}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to load event: %v", err), IsError: true}, nil
	}

	member, err := isMember(ctx, t.store, event.ID, exec.User.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to check membership: %v", err), IsError: true}, nil
	}
	if !member {
		return &models.ToolResult{Content: "You don't have access to this event.", IsError: true}, nil
	}

	memories, err := t.store.ListMemories(ctx, event.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to list memories: %v", err), IsError: true}, nil
	}
	if len(memories) == 0 {
		return &models.ToolResult{
			Content: fmt.Sprintf("El evento '%s' aún no tiene memorias guardadas.", event.Name),
		}, nil
	}

	members, err := t.store.EventMembers(ctx, event.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to list members: %v", err), IsError: true}, nil
	}

	withPhotos := 0
	var highlights []string
	for _, memory := range memories {
		if memory.PhotoKey != "" {
			withPhotos++
		}
		if memory.Text != "" && len(highlights) < 5 {
			highlights = append(highlights, "- "+memory.Text)
		}
	}

	var names []string
	for _, m := range members {
		name := m.FirstName
		if name == "" {
			name = m.Username
		}
		if name != "" {
			names = append(names, name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary of '%s':\n", event.Name)
	if event.Description != "" {
		sb.WriteString(event.Description + "\n")
	}
	fmt.Fprintf(&sb, "Memories: %d (%d with photos)\n", len(memories), withPhotos)
	if len(names) > 0 {
		fmt.Fprintf(&sb, "Members: %s\n", strings.Join(names, ", "))
	}
	if len(highlights) > 0 {
		sb.WriteString("Highlights:\n" + strings.Join(highlights, "\n"))
	}

	return &models.ToolResult{Content: strings.TrimRight(sb.String(), "\n")}, nil
}
