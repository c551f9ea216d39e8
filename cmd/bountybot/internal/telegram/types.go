// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import "go.astrophena.name/bountybot/internal/tgmarkup"

// Message is an outgoing text message.
type Message struct {
	tgmarkup.Message

	ChatID             int64                 `json:"chat_id"`
	LinkPreviewOptions *LinkPreviewOptions   `json:"link_preview_options,omitempty"`
	ReplyMarkup        *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MaxMessageLength is the longest message text, in UTF-16 code units, the
// Bot API accepts.
const MaxMessageLength = 4096

// LinkPreviewOptions controls the link preview of a message.
type LinkPreviewOptions struct {
	IsDisabled    bool   `json:"is_disabled,omitempty"`
	URL           string `json:"url,omitempty"`
	ShowAboveText bool   `json:"show_above_text,omitempty"`
}

// InlineKeyboardMarkup is an inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// InlineKeyboardButton is a button of an inline keyboard.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Keyboard builds an inline keyboard with one button per row, skipping
// buttons without text.
func Keyboard(buttons ...InlineKeyboardButton) *InlineKeyboardMarkup {
	var rows [][]InlineKeyboardButton
	for _, b := range buttons {
		if b.Text == "" || (b.URL == "" && b.CallbackData == "") {
			continue
		}
		rows = append(rows, []InlineKeyboardButton{b})
	}
	if len(rows) == 0 {
		return nil
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Update is an incoming update received with getUpdates.
type Update struct {
	UpdateID      int64              `json:"update_id"`
	Message       *IncomingMessage   `json:"message,omitempty"`
	MyChatMember  *ChatMemberUpdated `json:"my_chat_member,omitempty"`
	CallbackQuery *CallbackQuery     `json:"callback_query,omitempty"`
}

// CallbackQuery is a press of an inline keyboard button with callback data.
type CallbackQuery struct {
	ID      string           `json:"id"`
	From    User             `json:"from"`
	Message *IncomingMessage `json:"message,omitempty"`
	Data    string           `json:"data,omitempty"`
}

// IncomingMessage is a message received by the bot.
type IncomingMessage struct {
	MessageID       int64  `json:"message_id"`
	From            *User  `json:"from,omitempty"`
	Chat            Chat   `json:"chat"`
	Date            int64  `json:"date"`
	Text            string `json:"text,omitempty"`
	MigrateToChatID int64  `json:"migrate_to_chat_id,omitempty"`
}

// Command returns the bot command the message starts with, without the
// leading slash and the bot username, or an empty string.
func (m *IncomingMessage) Command() string {
	if len(m.Text) < 2 || m.Text[0] != '/' {
		return ""
	}
	cmd := m.Text[1:]
	for i, r := range cmd {
		if r == ' ' || r == '\n' || r == '@' {
			return cmd[:i]
		}
	}
	return cmd
}

// Chat is a Telegram chat.
type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Chat types.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
	ChatChannel    = "channel"
)

// User is a Telegram user or bot.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot,omitempty"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// ChatMemberUpdated describes a change of the bot's membership in a chat.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	Date          int64      `json:"date"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// ChatMember is a member of a chat.
type ChatMember struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

// Member reports whether the status means the user is in the chat.
func (m ChatMember) Member() bool {
	switch m.Status {
	case "creator", "administrator", "member", "restricted":
		return true
	}
	return false
}
