// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package db stores the issue snapshot, known chats and users, and editable
// message templates.
package db

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
)

// ErrNotFound is returned when a requested record doesn't exist.
var ErrNotFound = errors.New("not found")

// Chat is a chat the bot is or was a member of.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	// Broadcast is set when the chat wants to receive notifications.
	Broadcast bool      `json:"broadcast"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a person that started the bot in a private chat.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Kind is a kind of text template.
type Kind string

// Text template kinds.
const (
	KindMessage Kind = "message"
	KindButton  Kind = "button"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindMessage || k == KindButton }

// Text is an editable template identified by kind and code.
type Text struct {
	Kind Kind   `json:"kind"`
	Code string `json:"code"`
	Text string `json:"text"`
	// PreviewURL is an optional link shown as the message preview. Only
	// messages use it.
	PreviewURL string `json:"preview_url,omitempty"`
}

// Audience selects the chats a newsletter is sent to.
type Audience string

// Newsletter audiences.
const (
	AudienceAll     Audience = "all"
	AudiencePrivate Audience = "private"
	AudienceChannel Audience = "channel"
	AudienceGroup   Audience = "group"
)

// Valid reports whether a is a known audience.
func (a Audience) Valid() bool {
	switch a {
	case AudienceAll, AudiencePrivate, AudienceChannel, AudienceGroup:
		return true
	}
	return false
}

// includes reports whether chats of Telegram chat type typ belong to a.
func (a Audience) includes(typ string) bool {
	switch a {
	case AudienceChannel:
		return typ == "channel"
	case AudienceGroup:
		return typ == "group" || typ == "supergroup"
	}
	return false
}

// audienceIDs combines ids of matching chats and of users into the
// recipients of a.
func audienceIDs(a Audience, chatIDs, userIDs []int64) []int64 {
	switch a {
	case AudiencePrivate:
		return userIDs
	case AudienceAll:
		ids := chatIDs
		for _, id := range userIDs {
			if !slices.Contains(chatIDs, id) {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return chatIDs
}

// Button is a link attached to a newsletter.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Newsletter is an announcement composed by administrators.
type Newsletter struct {
	ID int64 `json:"id"`
	// Content is Markdown.
	Content   string    `json:"content"`
	Buttons   []Button  `json:"buttons,omitempty"`
	Audience  Audience  `json:"audience"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the bot database.
type Store interface {
	// Issues returns the issue snapshot ordered by number.
	Issues(ctx context.Context) ([]issue.Issue, error)
	// UpsertIssues writes all issues to the snapshot, keyed by number.
	// Either all issues are written or none.
	UpsertIssues(ctx context.Context, issues []issue.Issue) error

	// Chat returns the chat with id or ErrNotFound.
	Chat(ctx context.Context, id int64) (Chat, error)
	// Chats returns all known chats ordered by creation time.
	Chats(ctx context.Context) ([]Chat, error)
	// UpsertChat creates or updates a chat. The creation time of an existing
	// chat is kept.
	UpsertChat(ctx context.Context, c Chat) error
	// MigrateChat moves a chat to a new id, as happens when a group becomes
	// a supergroup.
	MigrateChat(ctx context.Context, from, to int64) error
	// BroadcastChatIDs returns ids of chats that want notifications, ordered
	// by creation time.
	BroadcastChatIDs(ctx context.Context) ([]int64, error)

	// Users returns all known users ordered by creation time.
	Users(ctx context.Context) ([]User, error)
	// UpsertUser creates or updates a user. The creation time of an existing
	// user is kept.
	UpsertUser(ctx context.Context, u User) error

	// Text returns the template with kind and code. A missing template is
	// created with the code as its text, so it shows up for editing.
	Text(ctx context.Context, kind Kind, code string) (Text, error)
	// Texts returns all templates of kind ordered by code.
	Texts(ctx context.Context, kind Kind) ([]Text, error)
	// SetText creates or replaces a template.
	SetText(ctx context.Context, t Text) error
	// Seed creates templates that don't exist yet and leaves existing ones
	// untouched.
	Seed(ctx context.Context, texts []Text) error

	// Newsletters returns all newsletters ordered by id.
	Newsletters(ctx context.Context) ([]Newsletter, error)
	// Newsletter returns the newsletter with id or ErrNotFound.
	Newsletter(ctx context.Context, id int64) (Newsletter, error)
	// SaveNewsletter creates n if its ID is zero and replaces the newsletter
	// with that ID otherwise, keeping its creation time. It returns the saved
	// newsletter. Replacing a missing newsletter fails with ErrNotFound.
	SaveNewsletter(ctx context.Context, n Newsletter) (Newsletter, error)
	// DeleteNewsletter deletes the newsletter with id or returns ErrNotFound.
	DeleteNewsletter(ctx context.Context, id int64) error
	// AudienceChatIDs returns ids of chats in a, ordered by creation time.
	// Private chats are those of users that started the bot; AudienceAll
	// adds them after all known chats.
	AudienceChatIDs(ctx context.Context, a Audience) ([]int64, error)

	// Close releases the database.
	Close() error
}

// Open opens the database described by dsn: "mem:" is an in-memory
// database, "postgres://..." and "postgresql://..." are PostgreSQL
// databases, and anything else, optionally prefixed with "sqlite:", is a path
// to a SQLite database.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "mem:":
		return NewMem(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	}
}
