// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot handles updates received from Telegram: membership changes in
// chats and commands sent by users.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/society"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/tgmarkup"
)

// DefaultPollTimeout is the long polling timeout passed to getUpdates.
const DefaultPollTimeout = 50 * time.Second

// Client is the part of the Telegram Bot API the bot uses. It is implemented
// by [telegram.Client].
type Client interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, msg telegram.Message) error
	AnswerCallbackQuery(ctx context.Context, id string) error
}

// Store keeps chats and users. It is implemented by [db.Store].
type Store interface {
	Chat(ctx context.Context, id int64) (db.Chat, error)
	UpsertChat(ctx context.Context, c db.Chat) error
	MigrateChat(ctx context.Context, from, to int64) error
	UpsertUser(ctx context.Context, u db.User) error
}

// Renderer renders replies. It is implemented by [format.Renderer].
type Renderer interface {
	Menu(ctx context.Context) (telegram.Message, error)
	Top(ctx context.Context, users []society.User) (telegram.Message, error)
	Error(ctx context.Context) (telegram.Message, error)
}

// Bot answers updates.
type Bot struct {
	Client   Client
	Store    Store
	Renderer Renderer
	// Leaderboard returns the top contributors. It is implemented by
	// [society.Cache].
	Leaderboard interface {
		Top(ctx context.Context) ([]society.User, error)
	}
	// Digest renders the current weekly digest. It is implemented by
	// [notify.Digest].
	Digest interface {
		Message(ctx context.Context) (telegram.Message, error)
	}
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
	// PollTimeout defaults to DefaultPollTimeout.
	PollTimeout time.Duration
	// Backoff limits how often polling is retried after a failure. If nil,
	// one retry per five seconds is allowed.
	Backoff *rate.Limiter
}

// Run polls for updates and handles them one by one until ctx is canceled.
// Failed polls are logged and retried.
func (b *Bot) Run(ctx context.Context) error {
	log := logger.Get(ctx)
	timeout := b.PollTimeout
	if timeout == 0 {
		timeout = DefaultPollTimeout
	}
	backoff := b.Backoff
	if backoff == nil {
		backoff = rate.NewLimiter(rate.Every(5*time.Second), 1)
	}

	var offset int64
	for {
		updates, err := b.Client.GetUpdates(ctx, offset, timeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Warn("failed to get updates", "err", err)
			var retryAfter *telegram.RetryAfterError
			if errors.As(err, &retryAfter) && !sleep(ctx, retryAfter.RetryAfter) {
				return nil
			}
			if err := backoff.Wait(ctx); err != nil {
				return nil
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			b.Handle(ctx, u)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Handle handles a single update. Errors are logged. When a command from a
// user fails, the user gets the error message.
func (b *Bot) Handle(ctx context.Context, u telegram.Update) {
	log := logger.Get(ctx).With("update_id", u.UpdateID)
	ctx = logger.Put(ctx, log)

	var (
		err    error
		chatID int64
	)
	switch {
	case u.MyChatMember != nil:
		err = b.handleMembership(ctx, u.MyChatMember)
	case u.Message != nil && u.Message.MigrateToChatID != 0:
		err = b.handleMigration(ctx, u.Message)
	case u.Message != nil && u.Message.Chat.Type == telegram.ChatPrivate:
		chatID = u.Message.Chat.ID
		err = b.handleCommand(ctx, u.Message)
	case u.CallbackQuery != nil:
		if m := u.CallbackQuery.Message; m != nil && m.Chat.Type == telegram.ChatPrivate {
			chatID = m.Chat.ID
		}
		err = b.handleCallback(ctx, u.CallbackQuery)
	}
	if err == nil {
		return
	}

	log.Error("failed to handle update", "err", err)
	if chatID == 0 {
		return
	}
	msg, err := b.Renderer.Error(ctx)
	if err != nil {
		log.Error("failed to render error message", "err", err)
		return
	}
	msg.ChatID = chatID
	if err := b.Client.SendMessage(ctx, msg); err != nil {
		log.Warn("failed to send error message", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// handleMembership records the bot joining or leaving a chat.
func (b *Bot) handleMembership(ctx context.Context, m *telegram.ChatMemberUpdated) error {
	log := logger.Get(ctx)
	joined := m.NewChatMember.Member() && !m.OldChatMember.Member()
	left := !m.NewChatMember.Member() && m.OldChatMember.Member()
	if !joined && !left {
		return nil
	}

	c, err := b.Store.Chat(ctx, m.Chat.ID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		c = db.Chat{ID: m.Chat.ID, CreatedAt: b.now()}
	case err != nil:
		return err
	}
	c.Type = m.Chat.Type
	c.Title = chatTitle(m.Chat)
	c.Username = m.Chat.Username
	c.UpdatedAt = b.now()
	if left {
		c.Broadcast = false
	} else if m.Chat.Type != telegram.ChatPrivate {
		c.Broadcast = true
	}
	if err := b.Store.UpsertChat(ctx, c); err != nil {
		return err
	}
	log.Info("chat membership changed", "chat_id", c.ID, "type", c.Type, "title", c.Title, "joined", joined)

	if joined && (m.Chat.Type == telegram.ChatGroup || m.Chat.Type == telegram.ChatSupergroup) {
		return b.sendChatID(ctx, m.Chat.ID, m.Chat.ID)
	}
	return nil
}

// handleMigration moves a group that became a supergroup to its new ID.
func (b *Bot) handleMigration(ctx context.Context, m *telegram.IncomingMessage) error {
	to := m.MigrateToChatID
	err := b.Store.MigrateChat(ctx, m.Chat.ID, to)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("migrating chat %d to %d: %w", m.Chat.ID, to, err)
	}
	logger.Get(ctx).Info("chat migrated", "from", m.Chat.ID, "to", to)
	return b.sendChatID(ctx, to, to)
}

// sendChatID posts id to the chat, so administrators can copy it.
func (b *Bot) sendChatID(ctx context.Context, chatID, id int64) error {
	return b.Client.SendMessage(ctx, telegram.Message{
		Message: tgmarkup.FromMarkdown("`" + strconv.FormatInt(id, 10) + "`"),
		ChatID:  chatID,
	})
}

func (b *Bot) handleCommand(ctx context.Context, m *telegram.IncomingMessage) error {
	if m.From != nil {
		if err := b.Store.UpsertUser(ctx, b.user(*m.From)); err != nil {
			return err
		}
	}

	var (
		msg telegram.Message
		err error
	)
	switch m.Command() {
	case "start":
		msg, err = b.Renderer.Menu(ctx)
	case "top":
		msg, err = b.top(ctx)
	case "digest":
		msg, err = b.Digest.Message(ctx)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	msg.ChatID = m.Chat.ID
	return b.Client.SendMessage(ctx, msg)
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if err := b.Client.AnswerCallbackQuery(ctx, q.ID); err != nil {
		logger.Get(ctx).Debug("failed to answer callback query", "err", err)
	}
	if q.Message == nil || q.Data != format.TopCallback {
		return nil
	}
	msg, err := b.top(ctx)
	if err != nil {
		return err
	}
	msg.ChatID = q.Message.Chat.ID
	return b.Client.SendMessage(ctx, msg)
}

func (b *Bot) top(ctx context.Context) (telegram.Message, error) {
	users, err := b.Leaderboard.Top(ctx)
	if err != nil {
		return telegram.Message{}, err
	}
	return b.Renderer.Top(ctx, users)
}

func (b *Bot) user(u telegram.User) db.User {
	now := b.now()
	return db.User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func chatTitle(c telegram.Chat) string {
	if c.Title != "" {
		return c.Title
	}
	if c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	return c.FirstName
}
