package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/tools"
	"github.com/mementolabs/memento/pkg/models"
)

// InviteLinkTool mints a shareable Telegram deep link for an event.
// Only members of the event can generate links for it.
type InviteLinkTool struct {
	store storage.Store
}

// NewInviteLinkTool creates the generate_invite_link tool.
func NewInviteLinkTool(store storage.Store) *InviteLinkTool {
	return &InviteLinkTool{store: store}
}

func (t *InviteLinkTool) Name() string {
	return "generate_invite_link"
}

func (t *InviteLinkTool) Description() string {
	return "Generate a shareable Telegram invitation link for an event"
}

func (t *InviteLinkTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "event_id": {"type": "integer", "description": "ID of the event to generate invite link for"}
  },
  "required": ["event_id"]
}`)
}

func (t *InviteLinkTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
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
		return &models.ToolResult{
			Content: "You don't have permission to generate invite links for this event.",
			IsError: true,
		}, nil
	}

	invite, err := t.store.CreateInvite(ctx, event.ID, exec.User.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to create invite: %v", err), IsError: true}, nil
	}

	botUsername := exec.BotUsername
	if botUsername == "" {
		botUsername = "memento_bot"
	}
	link := fmt.Sprintf("https://t.me/%s?start=%s", botUsername, invite.Token)

	return &models.ToolResult{
		Content: fmt.Sprintf("Invite link for '%s' created!\n%s", event.Name, link),
	}, nil
}

// JoinByInviteTool redeems an invite token from a /start deep link.
type JoinByInviteTool struct {
	store storage.Store
}

// NewJoinByInviteTool creates the join_event_invite tool.
func NewJoinByInviteTool(store storage.Store) *JoinByInviteTool {
	return &JoinByInviteTool{store: store}
}

func (t *JoinByInviteTool) Name() string {
	return "join_event_invite"
}

func (t *JoinByInviteTool) Description() string {
	return "Join an event using an invite code from a deep link"
}

func (t *JoinByInviteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "invite_code": {"type": "string", "description": "Event invite code from the link"}
  },
  "required": ["invite_code"]
}`)
}

func (t *JoinByInviteTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	exec := tools.ExecutionFromContext(ctx)
	if exec == nil || exec.User == nil {
		return &models.ToolResult{Content: "no user in execution context", IsError: true}, nil
	}

	var params struct {
		InviteCode string `json:"invite_code"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}
	if _, err := uuid.Parse(params.InviteCode); err != nil {
		return &models.ToolResult{Content: "Invalid invite code format.", IsError: true}, nil
	}

	invite, err := t.store.GetInvite(ctx, params.InviteCode)
	if err != nil {
		if errors.Is(err, storage.ErrInviteNotFound) {
			return &models.ToolResult{Content: "Invalid invite code.", IsError: true}, nil
		}
		return &models.ToolResult{Content: fmt.Sprintf("failed to resolve invite: %v", err), IsError: true}, nil
	}

	event, err := t.store.GetEvent(ctx, invite.EventID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to load event: %v", err), IsError: true}, nil
	}

	alreadyMember, err := isMember(ctx, t.store, event.ID, exec.User.ID)
	if err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to check membership: %v", err), IsError: true}, nil
	}
	if alreadyMember {
		return &models.ToolResult{
			Content: fmt.Sprintf("You're already a member of '%s'!\n\nYou can add memories to this event anytime.", event.Name),
		}, nil
	}

	if err := t.store.JoinEvent(ctx, event.ID, exec.User.ID); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("failed to join event: %v", err), IsError: true}, nil
	}

	return &models.ToolResult{
		Content: fmt.Sprintf("Welcome! You've joined '%s'! 🎉\n\nYou can now:\n- Add memories with photos and descriptions\n- View event memories\n- Generate invite links to share with others", event.Name),
	}, nil
}

func isMember(ctx context.Context, store storage.Store, eventID, userID int64) (bool, error) {
	members, err := store.EventMembers(ctx, eventID)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member.ID == userID {
			return true, nil
		}
	}
	return false, nil
}
