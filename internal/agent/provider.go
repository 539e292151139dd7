package agent

import (
	"context"
	"encoding/json"

	"github.com/mementolabs/memento/pkg/models"
)

// Provider defines the interface for LLM backends.
//
// Implementations handle the specifics of a vendor API (Anthropic,
// OpenAI-compatible) while presenting a unified streaming interface to
// the orchestrator.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Multiple goroutines
// may call Complete() simultaneously for different requests.
type Provider interface {
	// Complete sends a request and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string
}

// CompletionRequest contains all parameters for a model completion.
type CompletionRequest struct {
	// Model specifies which model to use. If empty, the provider's
	// default model is used.
	Model string `json:"model"`

	// System is the system prompt. Handled separately from messages in
	// most vendor APIs.
	System string `json:"system,omitempty"`

	// Messages contains the conversation in chronological order.
	Messages []CompletionMessage `json:"messages"`

	// Tools defines the tools the model may request to execute.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// MaxTokens limits the generated response length. If 0, the
	// provider's default is used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float64 `json:"temperature,omitempty"`
}

// CompletionMessage is a single message in a completion request.
//
// Role values: "user", "assistant", "tool". A "tool" message carries
// ToolResults for the preceding assistant message's ToolCalls.
type CompletionMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`

	// ImageURLs carries full images for vision-capable models. Only
	// populated when the image policy decides a turn keeps its pixels.
	ImageURLs []string `json:"image_urls,omitempty"`
}

// ToolDefinition is the provider-facing description of a tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// CompletionChunk is a single chunk in a streaming response.
//
// Each chunk may contain partial text, a complete tool call, a done
// signal, or an error. After a chunk with Done or Error the channel is
// closed.
type CompletionChunk struct {
	// Text is a partial text delta.
	Text string `json:"text,omitempty"`

	// ToolCall is a complete tool invocation request.
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	// Done indicates the stream completed normally.
	Done bool `json:"done,omitempty"`

	// Error reports a stream failure. Terminal like Done.
	Error error `json:"-"`

	// InputTokens and OutputTokens report usage when the vendor
	// includes it; populated on the final chunk.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}
