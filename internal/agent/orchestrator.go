package agent

import (
	"context"
	"strings"

	"github.com/mementolabs/memento/pkg/models"
)

// Fixed user-facing replies.
const (
	// emptyInputReply answers empty or whitespace-only messages
	// without a model round-trip.
	emptyInputReply = "Please send me a message and I'll help you save your memories."

	// noTextFallback covers a terminal model response carrying neither
	// text nor tool calls.
	noTextFallback = "Done!"

	// exhaustedReply closes a conversation whose tool loop hit the
	// iteration budget. Optimistic on purpose: the user gets a usable
	// reply instead of a dead end.
	exhaustedReply = "I've completed the requested actions."
)

// Request is one inbound user message plus everything needed to build
// its context.
type Request struct {
	User    UserInfo
	Text    string
	History []models.Turn

	// TotalTurns is the conversation's full stored length, which may
	// exceed len(History) when the fetch was capped.
	TotalTurns int

	HasPhoto         bool
	PhotoDescription string
	PhotoKey         string
	HasVideo         bool
}

// Presigner converts a stored photo key into a time-limited URL that
// model vendors can fetch server-side.
type Presigner interface {
	PresignURL(ctx context.Context, key string) (string, error)
}

// Reply is the orchestrator's answer to a request.
type Reply struct {
	Text      string
	UsedTools bool

	// InputTokens and OutputTokens accumulate vendor-reported usage
	// across all loop iterations, when available.
	InputTokens  int
	OutputTokens int
}

// Orchestrator runs the bounded tool-use loop: build context, call the
// model, execute requested tools, feed results back, repeat until the
// model answers in plain text or the iteration budget runs out.
type Orchestrator struct {
	provider  Provider
	registry  *Registry
	compactor *Compactor
	images    ImagePolicy
	prompts   *PromptBuilder
	opts      Options
}

// NewOrchestrator creates an orchestrator. A nil registry is replaced
// with an empty one.
func NewOrchestrator(provider Provider, registry *Registry, compactor *Compactor, images ImagePolicy, opts Options) *Orchestrator {
	if registry == nil {
		registry = NewRegistry()
	}
	if compactor == nil {
		compactor = NewCompactor(0, nil)
	}
	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		compactor: compactor,
		images:    images,
		prompts:   NewPromptBuilder(compactor),
		opts:      sanitizeOptions(opts),
	}
}

// Run processes one user message to completion and returns the reply.
//
// Tool calls execute sequentially in the order the model emitted them;
// a failing tool feeds its error result back to the model rather than
// aborting the loop. Only provider failures surface as errors.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Reply, error) {
	if o.provider == nil {
		return nil, ErrNoProvider
	}

	if strings.TrimSpace(req.Text) == "" {
		return &Reply{Text: emptyInputReply}, nil
	}

	history := o.compactor.Prioritize(o.compactor.Compact(req.History, req.TotalTurns))
	system := o.prompts.Build(req.User, history, req.HasPhoto, req.HasVideo)
	messages := o.buildMessages(ctx, history, req)

	reply := &Reply{}
	for iteration := 0; iteration < o.opts.MaxIterations; iteration++ {
		text, toolCalls, usage, err := o.streamOnce(ctx, system, messages)
		if err != nil {
			return nil, &LoopError{
				Phase:     PhaseStream,
				Iteration: iteration,
				Cause:     err,
			}
		}
		reply.InputTokens += usage.input
		reply.OutputTokens += usage.output

		if len(toolCalls) == 0 {
			if text == "" {
				text = noTextFallback
			}
			reply.Text = text
			return reply, nil
		}

		reply.UsedTools = true
		results := make([]models.ToolResult, 0, len(toolCalls))
		for _, call := range toolCalls {
			result, _ := o.registry.Execute(ctx, call.Name, call.Input)
			result.ToolCallID = call.ID
			if result.IsError {
				o.opts.Logger.Warn("tool call failed",
					"tool", call.Name,
					"iteration", iteration,
					"result", result.Content,
				)
			}
			results = append(results, *result)
		}

		messages = append(messages,
			CompletionMessage{Role: "assistant", Content: text, ToolCalls: toolCalls},
			CompletionMessage{Role: "tool", ToolResults: results},
		)
	}

	o.opts.Logger.Warn("tool loop exhausted", "max_iterations", o.opts.MaxIterations)
	reply.Text = exhaustedReply
	return reply, nil
}

// buildMessages renders the prioritized history under the image policy
// and appends the current user message. The current turn's photo is
// always attached in full regardless of mode; the policy only decides
// which historical photos keep their pixels.
func (o *Orchestrator) buildMessages(ctx context.Context, history []models.Turn, req *Request) []CompletionMessage {
	totalPhotos := 0
	for _, turn := range history {
		if turn.HasPhoto {
			totalPhotos++
		}
	}

	messages := make([]CompletionMessage, 0, len(history)+1)
	photoIndex := 0
	for _, turn := range history {
		msg := CompletionMessage{
			Role:    string(turn.Role),
			Content: o.images.Render(turn),
		}
		if turn.HasPhoto {
			if o.images.IncludeFullImage(photoIndex, totalPhotos) {
				if url := o.photoURL(ctx, turn.PhotoKey); url != "" {
					msg.ImageURLs = []string{url}
				}
			}
			photoIndex++
		}
		messages = append(messages, msg)
	}

	msg := CompletionMessage{
		Role:    "user",
		Content: req.Text,
	}
	if req.HasPhoto {
		if url := o.photoURL(ctx, req.PhotoKey); url != "" {
			msg.ImageURLs = []string{url}
		} else {
			// No fetchable URL to attach, so the model at least gets
			// the textual marker.
			msg.Content = o.images.Render(models.Turn{
				Role:             models.RoleUser,
				Text:             req.Text,
				HasPhoto:         true,
				PhotoDescription: req.PhotoDescription,
			})
		}
	}
	return append(messages, msg)
}

// photoURL presigns a stored photo key. Returns "" when no presigner
// is configured or signing fails; callers fall back to text.
func (o *Orchestrator) photoURL(ctx context.Context, key string) string {
	if key == "" || o.opts.Presigner == nil {
		return ""
	}
	url, err := o.opts.Presigner.PresignURL(ctx, key)
	if err != nil {
		o.opts.Logger.Warn("photo presign failed", "key", key, "error", err)
		return ""
	}
	return url
}

type usage struct {
	input  int
	output int
}

// streamOnce performs one model call and collects the streamed chunks
// into text and tool calls. Collection is the loop's only suspension
// point.
func (o *Orchestrator) streamOnce(ctx context.Context, system string, messages []CompletionMessage) (string, []models.ToolCall, usage, error) {
	req := &CompletionRequest{
		Model:     o.opts.Model,
		System:    system,
		Messages:  messages,
		Tools:     o.registry.Definitions(),
		MaxTokens: o.opts.MaxTokens,
	}

	chunks, err := o.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, usage{}, err
	}

	var text strings.Builder
	var toolCalls []models.ToolCall
	var used usage
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", nil, used, chunk.Error
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
		}
		if chunk.ToolCall != nil {
			toolCalls = append(toolCalls, *chunk.ToolCall)
		}
		used.input += chunk.InputTokens
		used.output += chunk.OutputTokens
		if chunk.Done {
			break
		}
	}
	select {
	case <-ctx.Done():
		return "", nil, used, ctx.Err()
	default:
	}
	return text.String(), toolCalls, used, nil
}
