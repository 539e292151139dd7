package models

import "time"

// User is a Telegram user known to the bot.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is a shared memory album: a trip, a party, anything a group
// wants to collect memories under.
type Event struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	EventDate   string    `json:"event_date,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Memory is a text and/or photo entry attached to an event.
type Memory struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text,omitempty"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite is a shareable join token for an event.
type Invite struct {
	Token     string    `json:"token"`
	EventID   int64     `json:"event_id"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
