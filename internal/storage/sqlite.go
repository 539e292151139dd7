package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/mementolabs/memento/pkg/models"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies
// the schema. An empty path uses an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite writes serialize anyway; one connection avoids lock errors.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_id INTEGER NOT NULL UNIQUE,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			event_date TEXT,
			creator_id INTEGER NOT NULL REFERENCES users(id),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS event_members (
			event_id INTEGER NOT NULL REFERENCES events(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (event_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL REFERENCES events(id),
			user_id INTEGER NOT NULL REFERENCES users(id),
			text TEXT,
			photo_key TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS invites (
			token TEXT PRIMARY KEY,
			event_id INTEGER NOT NULL REFERENCES events(id),
			created_by INTEGER NOT NULL REFERENCES users(id),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			channel_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			text TEXT,
			has_photo INTEGER NOT NULL DEFAULT 0,
			photo_description TEXT,
			photo_key TEXT,
			used_tools INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_event ON memories(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON event_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name
	`, telegramID, username, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var user models.User
	err = s.db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, first_name, last_name, created_at
		FROM users WHERE telegram_id = ?
	`, telegramID).Scan(&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO events (name, description, event_date, creator_id)
		VALUES (?, ?, ?, ?)
	`, event.Name, event.Description, event.EventDate, event.CreatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read event id: %w", err)
	}

	// Creator joins their own event.
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO event_members (event_id, user_id) VALUES (?, ?)
	`, id, event.CreatorID); err != nil {
		return nil, fmt.Errorf("failed to enroll creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	created := *event
	created.ID = id
	created.CreatedAt = time.Now()
	return &created, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, event_date, creator_id, created_at
		FROM events WHERE id = ?
	`, id).Scan(&event.ID, &event.Name, &event.Description, &event.EventDate, &event.CreatorID, &event.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}

func (s *SQLiteStore) JoinEvent(ctx context.Context, eventID, userID int64) error {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO event_members (event_id, user_id) VALUES (?, ?)
	`, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to join event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, userID int64) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, e.description, e.event_date, e.creator_id, e.created_at
		FROM events e
		JOIN event_members m ON m.event_id = e.id
		WHERE m.user_id = ?
		ORDER BY e.created_at, e.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Name, &event.Description, &event.EventDate, &event.CreatorID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) EventMembers(ctx context.Context, eventID int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.telegram_id, u.username, u.first_name, u.last_name, u.created_at
		FROM users u
		JOIN event_members m ON m.user_id = u.id
		WHERE m.event_id = ?
		ORDER BY m.joined_at, u.id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.TelegramID, &user.Username, &user.FirstName, &user.LastName, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) AddMemory(ctx context.Context, memory *models.Memory) (*models.Memory, error) {
	if _, err := s.GetEvent(ctx, memory.EventID); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (event_id, user_id, text, photo_key)
		VALUES (?, ?, ?, ?)
	`, memory.EventID, memory.UserID, memory.Text, memory.PhotoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to insert memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory id: %w", err)
	}

	created := *memory
	created.ID = id
	created.CreatedAt = time.Now()
	return &created, nil
}

func (s *SQLiteStore) ListMemories(ctx context.Context, eventID int64) ([]models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, user_id, text, photo_key, created_at
		FROM memories
		WHERE event_id = ?
		ORDER BY created_at, id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []models.Memory
	for rows.Next() {
		var memory models.Memory
		if err := rows.Scan(&memory.ID, &memory.EventID, &memory.UserID, &memory.Text, &memory.PhotoKey, &memory.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, memory)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) UpdateMemory(ctx context.Context, id int64, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE memories SET text = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrMemoryNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateInvite(ctx context.Context, eventID, userID int64) (*models.Invite, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	invite := &models.Invite{
		Token:     uuid.New().String(),
		EventID:   eventID,
		CreatedBy: userID,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invites (token, event_id, created_by) VALUES (?, ?, ?)
	`, invite.Token, invite.EventID, invite.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invite: %w", err)
	}
	return invite, nil
}

func (s *SQLiteStore) GetInvite(ctx context.Context, token string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.QueryRowContext(ctx, `
		SELECT token, event_id, created_by, created_at
		FROM invites WHERE token = ?
	`, token).Scan(&invite.Token, &invite.EventID, &invite.CreatedBy, &invite.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	return &invite, nil
}

func (s *SQLiteStore) GetOrCreateConversation(ctx context.Context, userID int64, channelID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM conversations WHERE user_id = ? AND channel_id = ?
	`, userID, channelID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to load conversation: %w", err)
	}

	id = uuid.New().String()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, channel_id) VALUES (?, ?, ?)
	`, id, userID, channelID); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, text, has_photo, photo_description, photo_key, used_tools, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, turn.ID, turn.ConversationID, string(turn.Role), turn.Text,
		turn.HasPhoto, turn.PhotoDescription, turn.PhotoKey, turn.UsedTools, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// CountTurns returns the full stored length of a conversation.
func (s *SQLiteStore) CountTurns(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM turns WHERE conversation_id = ?
	`, conversationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) History(ctx context.Context, conversationID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, text, has_photo, photo_description, photo_key, used_tools, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		var role string
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &role, &turn.Text,
			&turn.HasPhoto, &turn.PhotoDescription, &turn.PhotoKey, &turn.UsedTools, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = models.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
