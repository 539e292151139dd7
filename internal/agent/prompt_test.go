package agent

import (
	"strings"
	"testing"

	"github.com/mementolabs/memento/pkg/models"
)

func TestBuildIncludesUserContext(t *testing.T) {
	b := NewPromptBuilder(nil)

	prompt := b.Build(UserInfo{TelegramID: 42, Username: "ana", FirstName: "Ana"}, nil, false, false)

	if !strings.Contains(prompt, "Telegram ID: 42") {
		t.Error("prompt should carry the Telegram ID")
	}
	if !strings.Contains(prompt, "Username: ana") {
		t.Error("prompt should carry the username")
	}
	if !strings.Contains(prompt, "Nombre: Ana") {
		t.Error("prompt should carry the first name")
	}
}

func TestBuildUnknownUserFields(t *testing.T) {
	b := NewPromptBuilder(nil)

	prompt := b.Build(UserInfo{}, nil, false, false)
	if strings.Count(prompt, "unknown") != 3 {
		t.Errorf("empty user fields should render as unknown:\n%s", prompt)
	}
}

func TestBuildConversationContext(t *testing.T) {
	b := NewPromptBuilder(nil)

	history := []models.Turn{
		{Role: models.RoleUser, Text: "hola", HasPhoto: true},
		{Role: models.RoleAssistant, Text: "Creé el evento 'Asado del sábado'"},
	}
	prompt := b.Build(UserInfo{TelegramID: 1}, history, false, false)

	if !strings.Contains(prompt, "Evento activo en conversación: Asado del sábado") {
		t.Error("prompt should surface the active event")
	}
	if !strings.Contains(prompt, "Fotos enviadas recientemente: 1") {
		t.Error("prompt should count recent photos")
	}
}

func TestBuildOmitsEmptySections(t *testing.T) {
	b := NewPromptBuilder(nil)

	prompt := b.Build(UserInfo{TelegramID: 1}, nil, false, false)
	if strings.Contains(prompt, "<recent_context>") {
		t.Error("empty history should produce no recent context section")
	}
	if strings.Contains(prompt, "<current_state>") {
		t.Error("no media should produce no current state section")
	}
}

func TestBuildCurrentStateIndicators(t *testing.T) {
	b := NewPromptBuilder(nil)

	prompt := b.Build(UserInfo{TelegramID: 1}, nil, true, true)
	if !strings.Contains(prompt, "FOTO") {
		t.Error("photo indicator missing")
	}
	if !strings.Contains(prompt, "VIDEO") {
		t.Error("video indicator missing")
	}
}
