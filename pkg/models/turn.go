package models

import (
	"encoding/json"
	"time"
)

// Role indicates the turn author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single exchange in a conversation as stored and replayed
// for context building. A turn with HasPhoto set may additionally carry
// a caption-style description produced at ingestion time.
type Turn struct {
	ID               string    `json:"id"`
	ConversationID   string    `json:"conversation_id"`
	Role             Role      `json:"role"`
	Text             string    `json:"text"`
	HasPhoto         bool      `json:"has_photo,omitempty"`
	PhotoDescription string    `json:"photo_description,omitempty"`
	PhotoKey         string    `json:"photo_key,omitempty"`
	UsedTools        bool      `json:"used_tools,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToolCall represents a model's request to execute a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}
