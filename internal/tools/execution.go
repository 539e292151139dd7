// Package tools carries the per-request execution context shared by
// all tool implementations.
package tools

import (
	"context"

	"github.com/mementolabs/memento/pkg/models"
)

type executionKey struct{}

// Execution is the per-message state tools need beyond their JSON
// input: who is asking and what media arrived with the message.
type Execution struct {
	User           *models.User
	ConversationID string

	HasPhoto         bool
	PhotoKey         string
	PhotoDescription string

	// BotUsername builds t.me deep links for invites.
	BotUsername string
}

// WithExecution stores the execution state in the context.
func WithExecution(ctx context.Context, exec *Execution) context.Context {
	if exec == nil {
		return ctx
	}
	return context.WithValue(ctx, executionKey{}, exec)
}

// ExecutionFromContext retrieves the execution state from context.
func ExecutionFromContext(ctx context.Context) *Execution {
	exec, ok := ctx.Value(executionKey{}).(*Execution)
	if !ok {
		return nil
	}
	return exec
}
