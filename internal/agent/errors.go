package agent

import (
	"errors"
	"fmt"
)

// Common sentinel errors for agent operations
var (
	// ErrNoProvider indicates no model provider is configured
	ErrNoProvider = errors.New("no provider configured")

	// ErrMaxIterations indicates the tool-use loop exceeded its iteration limit
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrToolPanic indicates a tool panicked during execution
	ErrToolPanic = errors.New("tool panicked")
)

// LoopPhase represents a distinct phase in the tool-use loop lifecycle.
type LoopPhase string

const (
	// PhaseInit is the context-building phase before the first model call
	PhaseInit LoopPhase = "init"

	// PhaseStream is the model streaming phase
	PhaseStream LoopPhase = "stream"

	// PhaseExecuteTools is the tool execution phase
	PhaseExecuteTools LoopPhase = "execute_tools"

	// PhaseComplete is the completion phase
	PhaseComplete LoopPhase = "complete"
)

// LoopError represents an error during the tool-use loop with context
// about which phase and iteration it occurred in.
type LoopError struct {
	// Phase is the loop phase where the error occurred
	Phase LoopPhase

	// Iteration is the loop iteration where the error occurred
	Iteration int

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

// Unwrap returns the underlying error.
func (e *LoopError) Unwrap() error {
	return e.Cause
}
