package agent

import "log/slog"

// Options configures orchestrator behavior.
type Options struct {
	// MaxIterations limits tool-use iterations per request.
	MaxIterations int

	// MaxTokens is the default max tokens for model responses.
	MaxTokens int

	// Model overrides the provider's default model when set.
	Model string

	// Presigner converts stored photo keys into URLs the model vendor
	// can fetch. When nil, photo turns fall back to descriptions.
	Presigner Presigner

	// Logger receives orchestrator diagnostics.
	Logger *slog.Logger
}

// DefaultOptions returns the baseline orchestrator options.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 5,
		MaxTokens:     4096,
		Logger:        slog.Default(),
	}
}

func sanitizeOptions(opts Options) Options {
	defaults := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts
}
