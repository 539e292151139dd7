package agent

import (
	"fmt"
	"strings"

	"github.com/mementolabs/memento/pkg/models"
)

// identityPrompt is who the bot is. Kept short: high-signal tokens only.
const identityPrompt = `Eres Memento, un bot de Telegram que ayuda a grupos de amigos a guardar recuerdos compartidos. Los usuarios crean eventos (un viaje, una cena, un concierto), se unen a eventos de otros y agregan recuerdos con texto o fotos.

Responde siempre en el idioma del usuario. Sé breve, cálido y directo.`

// instructionsPrompt is the structured behavior contract.
const instructionsPrompt = `<instructions>
- Usa las herramientas disponibles para crear eventos, unirte, y guardar o listar recuerdos. No inventes IDs ni resultados.
- Si el usuario envía una foto con texto que menciona un evento, guárdala como recuerdo en ese evento.
- Si falta información imprescindible (por ejemplo el nombre del evento), pregunta una sola cosa a la vez.
- Después de ejecutar una herramienta, confirma al usuario lo que hiciste con el mensaje que la herramienta devolvió.
- Nunca muestres detalles técnicos internos (JSON, IDs de llamadas, errores crudos).
</instructions>`

// UserInfo identifies the requesting Telegram user for prompt context.
type UserInfo struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// PromptBuilder assembles the system prompt from fixed prose plus
// runtime context sections. Empty sections are omitted.
type PromptBuilder struct {
	compactor *Compactor
}

// NewPromptBuilder returns a builder that uses the given compactor for
// history-derived context.
func NewPromptBuilder(compactor *Compactor) *PromptBuilder {
	if compactor == nil {
		compactor = NewCompactor(0, nil)
	}
	return &PromptBuilder{compactor: compactor}
}

// Build composes the complete system prompt.
func (b *PromptBuilder) Build(user UserInfo, history []models.Turn, hasPhoto, hasVideo bool) string {
	sections := []string{identityPrompt, instructionsPrompt}

	sections = append(sections,
		"<user_context>\n"+b.userContext(user)+"\n</user_context>")

	if conv := b.conversationContext(history); conv != "" {
		sections = append(sections,
			"<recent_context>\n"+conv+"\n</recent_context>")
	}

	if state := currentState(hasPhoto, hasVideo); state != "" {
		sections = append(sections,
			"<current_state>\n"+state+"\n</current_state>")
	}

	return strings.Join(sections, "\n\n")
}

func (b *PromptBuilder) userContext(user UserInfo) string {
	id := "unknown"
	if user.TelegramID != 0 {
		id = fmt.Sprintf("%d", user.TelegramID)
	}
	username := user.Username
	if username == "" {
		username = "unknown"
	}
	firstName := user.FirstName
	if firstName == "" {
		firstName = "unknown"
	}
	return fmt.Sprintf("Telegram ID: %s\nUsername: %s\nNombre: %s", id, username, firstName)
}

func (b *PromptBuilder) conversationContext(history []models.Turn) string {
	if len(history) == 0 {
		return ""
	}

	var parts []string

	if event := b.compactor.ActiveEvent(history); event != "" {
		parts = append(parts, "Evento activo en conversación: "+event)
	}

	photos := 0
	for _, turn := range history {
		if turn.HasPhoto {
			photos++
		}
	}
	if photos > 0 {
		parts = append(parts, fmt.Sprintf("Fotos enviadas recientemente: %d", photos))
	}

	parts = append(parts, "Usa el historial para evitar preguntar información que el usuario ya te dio.")
	return strings.Join(parts, "\n")
}

func currentState(hasPhoto, hasVideo bool) string {
	var indicators []string
	if hasPhoto {
		indicators = append(indicators, "⚠️ El usuario envió una FOTO en este mensaje")
	}
	if hasVideo {
		indicators = append(indicators, "⚠️ El usuario envió un VIDEO en este mensaje")
	}
	return strings.Join(indicators, "\n")
}
