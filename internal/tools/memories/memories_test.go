package memories

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/tools"
	"github.com/mementolabs/memento/pkg/models"
)

type fakePresigner struct{}

func (fakePresigner) PresignURL(ctx context.Context, key string) (string, error) {
	return "https://media.example.com/" + key, nil
}

func setup(t *testing.T) (storage.Store, context.Context, *models.Event) {
	t.Helper()
	store, err := storage.NewSQLiteStore("")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	user, err := store.GetOrCreateUser(context.Background(), 1, "ana", "Ana", "")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	event, err := store.CreateEvent(context.Background(), &models.Event{Name: "Viaje", CreatorID: user.ID})
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	ctx := tools.WithExecution(context.Background(), &tools.Execution{User: user})
	return store, ctx, event
}

func TestAddToolText(t *testing.T) {
	store, ctx, event := setup(t)

	result, err := NewAddTool(store).Execute(ctx, json.RawMessage(`{"event_id": 1, "text": "Llegamos"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("got error result: %q", result.Content)
	}
	if result.Content != "Memory added to event #1!" {
		t.Errorf("got %q", result.Content)
	}

	memories, _ := store.ListMemories(ctx, event.ID)
	if len(memories) != 1 || memories[0].Text != "Llegamos" {
		t.Errorf("got %+v", memories)
	}
}

func TestAddToolPhotoFromExecution(t *testing.T) {
	store, _, event := setup(t)

	user, _ := store.GetOrCreateUser(context.Background(), 1, "ana", "Ana", "")
	ctx := tools.WithExecution(context.Background(), &tools.Execution{
		User:             user,
		HasPhoto:         true,
		PhotoKey:         "memories/1/abc",
		PhotoDescription: "atardecer en la playa",
	})

	result, _ := NewAddTool(store).Execute(ctx, json.RawMessage(`{"event_id": 1, "has_image": true}`))
	if result.IsError {
		t.Fatalf("got error result: %q", result.Content)
	}
	if result.Content != "Memory added to event #1! (photo attached)" {
		t.Errorf("got %q", result.Content)
	}

	memories, _ := store.ListMemories(ctx, event.ID)
	if len(memories) != 1 {
		t.Fatalf("got %d memories", len(memories))
	}
	if memories[0].PhotoKey != "memories/1/abc" {
		t.Errorf("got photo key %q", memories[0].PhotoKey)
	}
	// Without explicit text the description stands in.
	if memories[0].Text != "atardecer en la playa" {
		t.Errorf("got text %q", memories[0].Text)
	}
}

func TestAddToolMissingEvent(t *testing.T) {
	store, ctx, _ := setup(t)

	result, _ := NewAddTool(store).Execute(ctx, json.RawMessage(`{"event_id": 99, "text": "x"}`))
	if !result.IsError {
		t.Fatal("missing event should fail")
	}
	if result.Content != "Could not add memory. Make sure you're in this event." {
		t.Errorf("got %q", result.Content)
	}
}

func TestAddToolNeedsContent(t *testing.T) {
	store, ctx, _ := setup(t)

	result, _ := NewAddTool(store).Execute(ctx, json.RawMessage(`{"event_id": 1}`))
	if !result.IsError {
		t.Error("empty memory should fail")
	}
}

func TestListToolEmpty(t *testing.T) {
	store, ctx, _ := setup(t)

	result, _ := NewListTool(store, nil).Execute(ctx, json.RawMessage(`{"event_id": 1}`))
	if result.Content != "No memories in event #1 yet." {
		t.Errorf("got %q", result.Content)
	}
}

func TestListToolPresignsPhotos(t *testing.T) {
	store, ctx, event := setup(t)

	user, _ := store.GetOrCreateUser(ctx, 1, "ana", "Ana", "")
	store.AddMemory(ctx, &models.Memory{EventID: event.ID, UserID: user.ID, Text: "Atardecer", PhotoKey: "memories/1/abc"})
	store.AddMemory(ctx, &models.Memory{EventID: event.ID, UserID: user.ID, Text: "Sin foto"})

	result, _ := NewListTool(store, fakePresigner{}).Execute(ctx, json.RawMessage(`{"event_id": 1}`))
	if result.IsError {
		t.Fatalf("got error result: %q", result.Content)
	}
	if !strings.Contains(result.Content, "[photo: https://media.example.com/memories/1/abc]") {
		t.Errorf("photo key should presign, got %q", result.Content)
	}
	if !strings.Contains(result.Content, "#2 Sin foto") {
		t.Errorf("got %q", result.Content)
	}
}

func TestListToolWithoutPresigner(t *testing.T) {
	store, ctx, event := setup(t)

	user, _ := store.GetOrCreateUser(ctx, 1, "ana", "Ana", "")
	store.AddMemory(ctx, &models.Memory{EventID: event.ID, UserID: user.ID, PhotoKey: "raw-key"})

	result, _ := NewListTool(store, nil).Execute(ctx, json.RawMessage(`{"event_id": 1}`))
	if !strings.Contains(result.Content, "[photo: raw-key]") {
		t.Errorf("raw key should pass through, got %q", result.Content)
	}
}

func TestUpdateTool(t *testing.T) {
	store, ctx, event := setup(t)

	user, _ := store.GetOrCreateUser(ctx, 1, "ana", "Ana", "")
	store.AddMemory(ctx, &models.Memory{EventID: event.ID, UserID: user.ID, Text: "Original"})

	result, err := NewUpdateTool(store).Execute(ctx, json.RawMessage(`{"memory_id": 1, "text": "Enriquecido"}`))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("got error result: %q", result.Content)
	}
	if result.Content != "Memory #1 updated (text)" {
		t.Errorf("got %q", result.Content)
	}

	memories, _ := store.ListMemories(ctx, event.ID)
	if memories[0].Text != "Enriquecido" {
		t.Errorf("got %q", memories[0].Text)
	}
}

func TestUpdateToolValidation(t *testing.T) {
	store, ctx, _ := setup(t)
	tool := NewUpdateTool(store)

	result, _ := tool.Execute(ctx, json.RawMessage(`{"memory_id": 1, "text": "  "}`))
	if !result.IsError || result.Content != "Must provide text to update" {
		t.Errorf("got %q", result.Content)
	}

	result, _ = tool.Execute(ctx, json.RawMessage(`{"memory_id": 99, "text": "x"}`))
	if !result.IsError || !strings.Contains(result.Content, "Memory #99 not found") {
		t.Errorf("got %q", result.Content)
	}
}
