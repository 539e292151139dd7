// Package storage persists users, events, memories, and conversation
// history behind a narrow interface so tools and the channel layer
// never touch SQL directly.
package storage

import (
	"context"
	"errors"

	"github.com/mementolabs/memento/pkg/models"
)

// Not-found sentinels, matched with errors.Is.
var (
	ErrEventNotFound  = errors.New("event not found")
	ErrMemoryNotFound = errors.New("memory not found")
	ErrInviteNotFound = errors.New("invite not found")
)

// Store is the persistence interface for the bot's domain data.
type Store interface {
	// GetOrCreateUser resolves a Telegram user to a local record,
	// creating it on first contact and refreshing mutable profile
	// fields on later ones.
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error)

	// CreateEvent inserts an event and enrolls the creator as its
	// first member.
	CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error)

	// GetEvent returns an event by ID or ErrEventNotFound.
	GetEvent(ctx context.Context, id int64) (*models.Event, error)

	// JoinEvent enrolls a user in an event. Joining twice is not an
	// error.
	JoinEvent(ctx context.Context, eventID, userID int64) error

	// ListEvents returns the events a user belongs to, oldest first.
	ListEvents(ctx context.Context, userID int64) ([]models.Event, error)

	// EventMembers returns the users enrolled in an event.
	EventMembers(ctx context.Context, eventID int64) ([]models.User, error)

	// AddMemory attaches a memory to an event.
	AddMemory(ctx context.Context, memory *models.Memory) (*models.Memory, error)

	// ListMemories returns an event's memories, oldest first.
	ListMemories(ctx context.Context, eventID int64) ([]models.Memory, error)

	// UpdateMemory replaces a memory's text.
	UpdateMemory(ctx context.Context, id int64, text string) error

	// CreateInvite mints a shareable join token for an event.
	CreateInvite(ctx context.Context, eventID, userID int64) (*models.Invite, error)

	// GetInvite resolves an invite token or returns ErrInviteNotFound.
	GetInvite(ctx context.Context, token string) (*models.Invite, error)

	// GetOrCreateConversation returns the conversation ID for a user
	// on a channel, creating it on first use.
	GetOrCreateConversation(ctx context.Context, userID int64, channelID string) (string, error)

	// AppendTurn records a conversation turn.
	AppendTurn(ctx context.Context, turn *models.Turn) error

	// CountTurns returns the conversation's full stored turn count,
	// independent of any History fetch limit.
	CountTurns(ctx context.Context, conversationID string) (int, error)

	// History returns the last limit turns of a conversation in
	// chronological order.
	History(ctx context.Context, conversationID string, limit int) ([]models.Turn, error)

	// Close releases the underlying database handle.
	Close() error
}
