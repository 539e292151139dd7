// Package faq serves static help content about bot features.
package faq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mementolabs/memento/pkg/models"
)

var topics = map[string]string{
	"upload_image": `How to upload an image/photo
1. First, create an event or make sure you're part of one (use 'list my events' to check)
2. Send a photo directly to the bot (using Telegram's photo upload)
3. You can optionally add a caption to the photo
4. The bot will ask which event to add it to, or you can say 'add this to event #X'
5. The photo will be stored as a memory in that event!

Example: just send a photo and say 'add this to event #1' or 'save this memory to hackaton event'`,

	"invite_user": `How to invite people to an event
1. Ask me for an invite link: 'invite someone to event #1'
2. Share the link with your friend
3. They tap the link and join automatically
4. Once joined, they can add their own memories to the event
5. Both of you will see all memories in the shared event!

Note: event IDs are numbers like #1, #2, #3, etc.`,

	"create_event": `How to create an event
Just tell me what event you want to create!
Examples:
- 'Create event Birthday Party'
- 'Create a new event named Summer Trip'
- 'New event: Graduation 2025'
You can optionally add a date:
- 'Create event Christmas on 2025-12-25'
You'll automatically be added to events you create!`,

	"add_memory": `How to add a memory
You can add both text and photo memories:
Text memory:
- 'Add memory to event #1: Had a great time!'
- 'Save to hackaton: Met amazing people'
Photo memory:
- Send a photo and say 'add to event #1'
- Or send photo with caption: 'for event #2'
Combined:
- Send a photo with a descriptive caption`,

	"general": `General Help - What I can do
📅 Create events: 'Create event [name]'
👥 Join events: 'Join event #1'
💭 Add memories: 'Add memory to event #1: [text]'
📸 Upload photos: send a photo directly
📋 List your events: 'Show my events' or 'List events'
🔍 View memories: 'Show memories from event #1'

Tips:
- Events have IDs like #1, #2, #3
- You can have multiple events
- Share invite links with friends so they can join
- Photos and text are both supported`,
}

// GetTool answers usage questions from a fixed topic table.
type GetTool struct{}

// NewGetTool creates the get_faq tool.
func NewGetTool() *GetTool {
	return &GetTool{}
}

func (t *GetTool) Name() string {
	return "get_faq"
}

func (t *GetTool) Description() string {
	return "Get help and instructions about how to use the bot features"
}

func (t *GetTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "topic": {
      "type": "string",
      "description": "The help topic: 'upload_image', 'invite_user', 'create_event', 'add_memory', 'general'",
      "enum": ["upload_image", "invite_user", "create_event", "add_memory", "general"]
    }
  },
  "required": ["topic"]
}`)
}

func (t *GetTool) Execute(ctx context.Context, input json.RawMessage) (*models.ToolResult, error) {
	var params struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return &models.ToolResult{Content: fmt.Sprintf("invalid params: %v", err), IsError: true}, nil
	}

	content, ok := topics[params.Topic]
	if !ok {
		content = topics["general"]
	}
	return &models.ToolResult{Content: content}, nil
}
