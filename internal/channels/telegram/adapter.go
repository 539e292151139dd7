// Package telegram connects the agent to Telegram via long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/mementolabs/memento/internal/agent"
	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/tools"
	"github.com/mementolabs/memento/pkg/models"
)

const startCommand = "/start"

const welcomeText = "👋 Welcome to Memories Bot!\n\n" +
	"I can help you store and organize your memories.\n\n" +
	"Try saying:\n" +
	"- 'Create event Birthday Party on 2025-12-25'\n" +
	"- 'List my events'\n" +
	"- 'Add memory to event #1: Had a great time!'"

const genericErrorText = "Sorry, there was an error processing your request."

// Config holds configuration for the Telegram adapter.
type Config struct {
	// Token is the bot token from @BotFather (required)
	Token string

	// BotUsername builds t.me invite deep links, e.g. "memento_bot"
	BotUsername string

	// HistoryLimit caps how many stored turns are loaded per message
	HistoryLimit int

	// RequestTimeout bounds handling of a single update
	RequestTimeout time.Duration

	// Logger is an optional slog.Logger instance
	Logger *slog.Logger
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	if c.BotUsername == "" {
		c.BotUsername = "memento_bot"
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// PhotoStore persists inbound photos and returns a storage key.
type PhotoStore interface {
	UploadPhoto(ctx context.Context, eventID int64, data io.Reader, mimeType string) (string, error)
}

// Adapter bridges Telegram updates to the agent and back.
type Adapter struct {
	config       Config
	bot          *bot.Bot
	store        storage.Store
	media        PhotoStore
	orchestrator *agent.Orchestrator
	logger       *slog.Logger
	httpClient   *http.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAdapter creates a Telegram adapter. media may be nil, in which
// case inbound photos are acknowledged but not stored.
func NewAdapter(config Config, store storage.Store, media PhotoStore, orchestrator *agent.Orchestrator) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("telegram: store is required")
	}
	if orchestrator == nil {
		return nil, errors.New("telegram: orchestrator is required")
	}

	return &Adapter{
		config:       config,
		store:        store,
		media:        media,
		orchestrator: orchestrator,
		logger:       config.Logger.With("adapter", "telegram"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Start begins long polling for updates. Polling runs in the
// background until Stop or context cancellation.
func (a *Adapter) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	b, err := bot.New(a.config.Token, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: create bot: %w", err)
	}
	a.bot = b

	a.logger.Info("starting telegram adapter", "bot_username", a.config.BotUsername)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.bot.Start(ctx)
		a.logger.Info("telegram adapter stopped")
	}()

	return nil
}

// Stop shuts the adapter down and waits for in-flight handlers.
func (a *Adapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleUpdate processes a single Telegram update.
func (a *Adapter) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message

	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	if strings.HasPrefix(msg.Text, startCommand) {
		a.handleStart(ctx, msg)
		return
	}

	if err := a.handleMessage(ctx, msg); err != nil {
		a.logger.Error("message handling failed",
			"error", err,
			"chat_id", msg.Chat.ID)
		a.reply(ctx, msg.Chat.ID, genericErrorText)
	}
}

// handleStart answers /start. A payload after the command is treated
// as an invite token from a t.me deep link.
func (a *Adapter) handleStart(ctx context.Context, msg *tgmodels.Message) {
	payload := strings.TrimSpace(strings.TrimPrefix(msg.Text, startCommand))
	if payload == "" {
		a.reply(ctx, msg.Chat.ID, welcomeText)
		return
	}

	user, err := a.resolveUser(ctx, msg.From)
	if err != nil {
		a.logger.Error("user resolution failed", "error", err)
		a.reply(ctx, msg.Chat.ID, genericErrorText)
		return
	}

	a.reply(ctx, msg.Chat.ID, a.joinByInvite(ctx, user, payload))
}

// joinByInvite resolves an invite token and enrolls the user.
func (a *Adapter) joinByInvite(ctx context.Context, user *models.User, token string) string {
	invite, err := a.store.GetInvite(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrInviteNotFound) {
			return "Invalid invite code."
		}
		a.logger.Error("invite lookup failed", "error", err)
		return genericErrorText
	}

	event, err := a.store.GetEvent(ctx, invite.EventID)
	if err != nil {
		a.logger.Error("event lookup failed", "error", err, "event_id", invite.EventID)
		return "Invalid invite code."
	}

	members, err := a.store.EventMembers(ctx, event.ID)
	if err == nil {
		for _, m := range members {
			if m.ID == user.ID {
				return fmt.Sprintf("You're already a member of '%s'!\n\nYou can add memories to this event anytime.", event.Name)
			}
		}
	}

	if err := a.store.JoinEvent(ctx, event.ID, user.ID); err != nil {
		a.logger.Error("invite join failed", "error", err, "event_id", event.ID)
		return genericErrorText
	}

	return fmt.Sprintf("Welcome! You've joined '%s'! 🎉\n\n"+
		"You can now:\n"+
		"- Add memories with photos and descriptions\n"+
		"- View event memories\n"+
		"- Generate invite links to share with others", event.Name)
}

// handleMessage runs an ordinary text or photo message through the agent.
func (a *Adapter) handleMessage(ctx context.Context, msg *tgmodels.Message) error {
	user, err := a.resolveUser(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	conversationID, err := a.store.GetOrCreateConversation(ctx, user.ID, strconv.FormatInt(msg.Chat.ID, 10))
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	// Typing feedback while the loop runs. Failure here is harmless.
	_, _ = a.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: msg.Chat.ID,
		Action: tgmodels.ChatActionTyping,
	})

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	hasPhoto := len(msg.Photo) > 0
	photoKey := ""
	if hasPhoto && a.media != nil {
		photoKey, err = a.storePhoto(ctx, msg.Photo)
		if err != nil {
			a.logger.Warn("photo upload failed", "error", err, "chat_id", msg.Chat.ID)
			photoKey = ""
		}
	}

	history, err := a.store.History(ctx, conversationID, a.config.HistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	totalTurns, err := a.store.CountTurns(ctx, conversationID)
	if err != nil {
		a.logger.Warn("turn count unavailable", "error", err, "conversation_id", conversationID)
		totalTurns = len(history)
	}

	if err := a.store.AppendTurn(ctx, &models.Turn{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Text:           text,
		HasPhoto:       hasPhoto,
		PhotoKey:       photoKey,
	}); err != nil {
		return fmt.Errorf("persist user turn: %w", err)
	}

	execCtx := tools.WithExecution(ctx, &tools.Execution{
		User:           user,
		ConversationID: conversationID,
		HasPhoto:       hasPhoto,
		PhotoKey:       photoKey,
		BotUsername:    a.config.BotUsername,
	})

	reply, err := a.orchestrator.Run(execCtx, &agent.Request{
		User: agent.UserInfo{
			TelegramID: user.TelegramID,
			Username:   user.Username,
			FirstName:  user.FirstName,
		},
		Text:       text,
		History:    history,
		TotalTurns: totalTurns,
		HasPhoto:   hasPhoto,
		PhotoKey:   photoKey,
		HasVideo:   msg.Video != nil,
	})
	if err != nil {
		return fmt.Errorf("agent run: %w", err)
	}

	if err := a.store.AppendTurn(ctx, &models.Turn{
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Text:           reply.Text,
		UsedTools:      reply.UsedTools,
	}); err != nil {
		a.logger.Warn("assistant turn not persisted", "error", err)
	}

	a.reply(ctx, msg.Chat.ID, reply.Text)
	return nil
}

// storePhoto downloads the largest rendition of an inbound photo and
// uploads it to the media store.
func (a *Adapter) storePhoto(ctx context.Context, sizes []tgmodels.PhotoSize) (string, error) {
	// Telegram orders photo sizes smallest first.
	fileID := sizes[len(sizes)-1].FileID

	file, err := a.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.bot.FileDownloadLink(file), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download photo: status %d", resp.StatusCode)
	}

	return a.media.UploadPhoto(ctx, 0, resp.Body, "image/jpeg")
}

// resolveUser maps a Telegram sender to a local user record.
func (a *Adapter) resolveUser(ctx context.Context, from *tgmodels.User) (*models.User, error) {
	return a.store.GetOrCreateUser(ctx, from.ID, from.Username, from.FirstName, from.LastName)
}

// reply sends a plain text message, logging failures.
func (a *Adapter) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	_, err := a.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		a.logger.Error("failed to send message", "error", err, "chat_id", chatID)
	}
}
