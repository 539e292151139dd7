package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mementolabs/memento/pkg/models"
)

// scriptedProvider allows control over model responses for loop testing.
type scriptedProvider struct {
	responses    [][]CompletionChunk
	currentCall  int32
	completeFunc func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}

func (p *scriptedProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if p.completeFunc != nil {
		return p.completeFunc(ctx, req)
	}

	call := int(atomic.AddInt32(&p.currentCall, 1)) - 1
	ch := make(chan *CompletionChunk, 10)

	go func() {
		defer close(ch)
		if call < len(p.responses) {
			for _, chunk := range p.responses[call] {
				c := chunk
				select {
				case ch <- &c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) calls() int {
	return int(atomic.LoadInt32(&p.currentCall))
}

// recordingTool records execution order and returns a fixed result.
type recordingTool struct {
	name   string
	log    *[]string
	result *models.ToolResult
	err    error
}

func (t *recordingTool) Name() string            { return t.name }
func (t *recordingTool) Description() string     { return "test tool" }
func (t *recordingTool) Schema() json.RawMessage { return nil }

func (t *recordingTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	if t.log != nil {
		*t.log = append(*t.log, t.name)
	}
	if t.err != nil {
		return nil, t.err
	}
	if t.result != nil {
		return t.result, nil
	}
	return &models.ToolResult{Content: t.name + " ok"}, nil
}

func newTestOrchestrator(provider Provider, registry *Registry) *Orchestrator {
	return NewOrchestrator(provider, registry, nil, NewImagePolicy(ImageDescriptionsOnly), Options{})
}

func TestRunNoProvider(t *testing.T) {
	o := newTestOrchestrator(nil, nil)
	_, err := o.Run(context.Background(), &Request{Text: "hola"})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestRunEmptyInputSkipsModel(t *testing.T) {
	provider := &scriptedProvider{}
	o := newTestOrchestrator(provider, nil)

	for _, text := range []string{"", "   ", "\n\t "} {
		reply, err := o.Run(context.Background(), &Request{Text: text})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reply.Text != emptyInputReply {
			t.Errorf("text %q: got reply %q", text, reply.Text)
		}
	}

	if provider.calls() != 0 {
		t.Errorf("expected zero provider calls, got %d", provider.calls())
	}
}

func TestRunPlainTextResponse(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{{Text: "¡Hola "}, {Text: "Ana!"}, {Done: true, InputTokens: 12, OutputTokens: 4}},
		},
	}
	o := newTestOrchestrator(provider, nil)

	reply, err := o.Run(context.Background(), &Request{Text: "hola"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != "¡Hola Ana!" {
		t.Errorf("got reply %q", reply.Text)
	}
	if reply.UsedTools {
		t.Error("expected UsedTools false")
	}
	if reply.InputTokens != 12 || reply.OutputTokens != 4 {
		t.Errorf("got usage %d/%d", reply.InputTokens, reply.OutputTokens)
	}
}

func TestRunNoTextFallback(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{{Done: true}},
		},
	}
	o := newTestOrchestrator(provider, nil)

	reply, err := o.Run(context.Background(), &Request{Text: "hola"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != noTextFallback {
		t.Errorf("got reply %q, want %q", reply.Text, noTextFallback)
	}
}

func TestRunToolLoopSequentialOrder(t *testing.T) {
	var log []string
	registry := NewRegistry()
	registry.Register(&recordingTool{name: "create_event", log: &log})
	registry.Register(&recordingTool{name: "add_memory", log: &log})

	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{ToolCall: &models.ToolCall{ID: "t1", Name: "create_event", Input: json.RawMessage(`{}`)}},
				{ToolCall: &models.ToolCall{ID: "t2", Name: "add_memory", Input: json.RawMessage(`{}`)}},
				{Done: true},
			},
			{{Text: "Listo, evento creado con el recuerdo."}, {Done: true}},
		},
	}
	o := newTestOrchestrator(provider, registry)

	reply, err := o.Run(context.Background(), &Request{Text: "crea el evento y guarda esto"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.UsedTools {
		t.Error("expected UsedTools true")
	}
	if len(log) != 2 || log[0] != "create_event" || log[1] != "add_memory" {
		t.Errorf("tools ran out of order: %v", log)
	}
	if provider.calls() != 2 {
		t.Errorf("expected 2 provider calls, got %d", provider.calls())
	}
}

func TestRunToolResultsFeedBack(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&recordingTool{
		name:   "list_events",
		result: &models.ToolResult{Content: "Your events:\n#1 Hackathon"},
	})

	responses := [][]CompletionChunk{
		{
			{ToolCall: &models.ToolCall{ID: "call-1", Name: "list_events", Input: json.RawMessage(`{}`)}},
			{Done: true},
		},
		{{Text: "Tienes un evento."}, {Done: true}},
	}

	var sawResults []models.ToolResult
	call := 0
	provider := &scriptedProvider{}
	provider.completeFunc = func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
		for _, msg := range req.Messages {
			sawResults = append(sawResults, msg.ToolResults...)
		}
		ch := make(chan *CompletionChunk, 10)
		for _, chunk := range responses[call] {
			c := chunk
			ch <- &c
		}
		close(ch)
		call++
		return ch, nil
	}

	o := newTestOrchestrator(provider, registry)
	if _, err := o.Run(context.Background(), &Request{Text: "lista mis eventos"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sawResults) != 1 {
		t.Fatalf("expected 1 tool result in second call, got %d", len(sawResults))
	}
	if sawResults[0].ToolCallID != "call-1" {
		t.Errorf("got ToolCallID %q", sawResults[0].ToolCallID)
	}
	if sawResults[0].Content != "Your events:\n#1 Hackathon" {
		t.Errorf("got content %q", sawResults[0].Content)
	}
}

func TestRunToolFailureContinuesLoop(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&recordingTool{name: "broken", err: errors.New("backend down")})

	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{
				{ToolCall: &models.ToolCall{ID: "t1", Name: "broken", Input: json.RawMessage(`{}`)}},
				{Done: true},
			},
			{{Text: "No pude guardar eso, intenta de nuevo."}, {Done: true}},
		},
	}
	o := newTestOrchestrator(provider, registry)

	reply, err := o.Run(context.Background(), &Request{Text: "guarda esto"})
	if err != nil {
		t.Fatalf("tool failure should not abort the loop: %v", err)
	}
	if reply.Text != "No pude guardar eso, intenta de nuevo." {
		t.Errorf("got reply %q", reply.Text)
	}
	if provider.calls() != 2 {
		t.Errorf("expected the error result to go back to the model, calls=%d", provider.calls())
	}
}

func TestRunExhaustsIterations(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&recordingTool{name: "list_events"})

	// Every response asks for a tool, so the loop can never settle.
	toolResponse := []CompletionChunk{
		{ToolCall: &models.ToolCall{ID: "t", Name: "list_events", Input: json.RawMessage(`{}`)}},
		{Done: true},
	}
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			toolResponse, toolResponse, toolResponse, toolResponse, toolResponse, toolResponse,
		},
	}
	o := newTestOrchestrator(provider, registry)

	reply, err := o.Run(context.Background(), &Request{Text: "lista"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Text != exhaustedReply {
		t.Errorf("got reply %q, want %q", reply.Text, exhaustedReply)
	}
	if provider.calls() != DefaultOptions().MaxIterations {
		t.Errorf("expected %d provider calls, got %d", DefaultOptions().MaxIterations, provider.calls())
	}
}

func TestRunProviderErrorWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	provider := &scriptedProvider{
		completeFunc: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
			return nil, cause
		},
	}
	o := newTestOrchestrator(provider, nil)

	_, err := o.Run(context.Background(), &Request{Text: "hola"})
	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected LoopError, got %T: %v", err, err)
	}
	if loopErr.Phase != PhaseStream {
		t.Errorf("got phase %v", loopErr.Phase)
	}
	if !errors.Is(err, cause) {
		t.Error("LoopError should unwrap to the provider error")
	}
}

func TestRunStreamErrorWrapped(t *testing.T) {
	provider := &scriptedProvider{
		responses: [][]CompletionChunk{
			{{Text: "partial"}, {Error: errors.New("stream reset")}},
		},
	}
	o := newTestOrchestrator(provider, nil)

	_, err := o.Run(context.Background(), &Request{Text: "hola"})
	var loopErr *LoopError
	if !errors.As(err, &loopErr) {
		t.Fatalf("expected LoopError, got %v", err)
	}
	if !strings.Contains(err.Error(), "stream reset") {
		t.Errorf("error should carry the cause: %v", err)
	}
}

// stubPresigner turns object keys into fetchable test URLs.
type stubPresigner struct {
	err error
}

func (p *stubPresigner) PresignURL(ctx context.Context, key string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "https://media.test/" + key, nil
}

func TestBuildMessagesHybridImages(t *testing.T) {
	o := NewOrchestrator(&scriptedProvider{}, nil, nil, NewImagePolicy(ImageHybrid),
		Options{Presigner: &stubPresigner{}})

	history := []models.Turn{
		{Role: models.RoleUser, Text: "primera", HasPhoto: true, PhotoKey: "k1", PhotoDescription: "playa"},
		{Role: models.RoleAssistant, Text: "guardada"},
		{Role: models.RoleUser, Text: "segunda", HasPhoto: true, PhotoKey: "k2", PhotoDescription: "cena"},
		{Role: models.RoleUser, Text: "tercera", HasPhoto: true, PhotoKey: "k3", PhotoDescription: "brindis"},
	}
	req := &Request{Text: "¿las tienes?"}

	messages := o.buildMessages(context.Background(), history, req)
	if len(messages) != 5 {
		t.Fatalf("got %d messages", len(messages))
	}

	// Three historical photos, limit two: the oldest drops to
	// description only and the rest carry presigned URLs.
	if len(messages[0].ImageURLs) != 0 {
		t.Error("oldest photo should not keep its image")
	}
	if !strings.HasPrefix(messages[0].Content, "[Photo: playa]") {
		t.Errorf("got content %q", messages[0].Content)
	}
	if len(messages[2].ImageURLs) != 1 || messages[2].ImageURLs[0] != "https://media.test/k2" {
		t.Errorf("second photo should keep a fetchable image, got %v", messages[2].ImageURLs)
	}
	if len(messages[3].ImageURLs) != 1 || messages[3].ImageURLs[0] != "https://media.test/k3" {
		t.Errorf("third photo should keep a fetchable image, got %v", messages[3].ImageURLs)
	}
}

func TestRunCurrentPhotoReachesModel(t *testing.T) {
	var captured []CompletionMessage
	provider := &scriptedProvider{
		completeFunc: func(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
			captured = req.Messages
			ch := make(chan *CompletionChunk, 1)
			ch <- &CompletionChunk{Text: "¡Qué foto!", Done: true}
			close(ch)
			return ch, nil
		},
	}
	o := NewOrchestrator(provider, nil, nil, NewImagePolicy(ImageDescriptionsOnly),
		Options{Presigner: &stubPresigner{}})

	_, err := o.Run(context.Background(), &Request{
		Text:     "guarda esta foto",
		HasPhoto: true,
		PhotoKey: "memories/1/abc",
	})
	if err != nil {
		t.Fatal(err)
	}

	last := captured[len(captured)-1]
	if len(last.ImageURLs) != 1 || last.ImageURLs[0] != "https://media.test/memories/1/abc" {
		t.Fatalf("current photo should always reach the model in full, got %v", last.ImageURLs)
	}
	if last.Content != "guarda esta foto" {
		t.Errorf("current turn should not be reduced to a marker, got %q", last.Content)
	}
}

func TestBuildMessagesNoPresignerFallsBack(t *testing.T) {
	o := newTestOrchestrator(&scriptedProvider{}, nil)

	history := []models.Turn{
		{Role: models.RoleUser, Text: "mira", HasPhoto: true, PhotoKey: "k1", PhotoDescription: "atardecer"},
	}
	req := &Request{Text: "y esta", HasPhoto: true, PhotoKey: "k2", PhotoDescription: "amanecer"}

	messages := o.buildMessages(context.Background(), history, req)
	for i, msg := range messages {
		if len(msg.ImageURLs) != 0 {
			t.Errorf("message %d should carry no image without a presigner, got %v", i, msg.ImageURLs)
		}
	}
	last := messages[len(messages)-1]
	if last.Content != "[Photo: amanecer]\ny esta" {
		t.Errorf("got %q", last.Content)
	}
}
