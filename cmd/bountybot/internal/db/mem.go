// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package db

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
)

// Mem is an in-memory [Store]. It is used in tests and in dry runs.
type Mem struct {
	mu     sync.Mutex
	issues map[int]issue.Issue
	chats  map[int64]Chat
	users  map[int64]User
	texts  map[textKey]Text

	newsletters map[int64]Newsletter
	lastID      int64
}

type textKey struct {
	kind Kind
	code string
}

// NewMem returns an empty [Mem].
func NewMem() *Mem {
	return &Mem{
		issues: make(map[int]issue.Issue),
		chats:  make(map[int64]Chat),
		users:  make(map[int64]User),
		texts:  make(map[textKey]Text),

		newsletters: make(map[int64]Newsletter),
	}
}

// Issues implements [Store].
func (m *Mem) Issues(ctx context.Context) ([]issue.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Values(m.issues), func(a, b issue.Issue) int {
		return cmp.Compare(a.Number, b.Number)
	}), nil
}

// UpsertIssues implements [Store].
func (m *Mem) UpsertIssues(ctx context.Context, issues []issue.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, is := range issues {
		is.Assignees = clean(is.Assignees)
		is.Labels = clean(is.Labels)
		m.issues[is.Number] = is
	}
	return nil
}

// Chat implements [Store].
func (m *Mem) Chat(ctx context.Context, id int64) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c, nil
}

// Chats implements [Store].
func (m *Mem) Chats(ctx context.Context) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Values(m.chats), func(a, b Chat) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}), nil
}

// UpsertChat implements [Store].
func (m *Mem) UpsertChat(ctx context.Context, c Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.chats[c.ID]; ok {
		c.CreatedAt = old.CreatedAt
	}
	m.chats[c.ID] = c
	return nil
}

// MigrateChat implements [Store].
func (m *Mem) MigrateChat(ctx context.Context, from, to int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[from]
	if !ok {
		return ErrNotFound
	}
	delete(m.chats, from)
	c.ID = to
	m.chats[to] = c
	return nil
}

// BroadcastChatIDs implements [Store].
func (m *Mem) BroadcastChatIDs(ctx context.Context) ([]int64, error) {
	chats, err := m.Chats(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, c := range chats {
		if c.Broadcast {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// Users implements [Store].
func (m *Mem) Users(ctx context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Values(m.users), func(a, b User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}), nil
}

// UpsertUser implements [Store].
func (m *Mem) UpsertUser(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.users[u.ID]; ok {
		u.CreatedAt = old.CreatedAt
	}
	m.users[u.ID] = u
	return nil
}

// Text implements [Store].
func (m *Mem) Text(ctx context.Context, kind Kind, code string) (Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := textKey{kind, code}
	t, ok := m.texts[k]
	if !ok {
		t = Text{Kind: kind, Code: code, Text: code}
		m.texts[k] = t
	}
	return t, nil
}

// Texts implements [Store].
func (m *Mem) Texts(ctx context.Context, kind Kind) ([]Text, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var texts []Text
	for k, t := range m.texts {
		if k.kind == kind {
			texts = append(texts, t)
		}
	}
	slices.SortFunc(texts, func(a, b Text) int { return cmp.Compare(a.Code, b.Code) })
	return texts, nil
}

// SetText implements [Store].
func (m *Mem) SetText(ctx context.Context, t Text) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts[textKey{t.Kind, t.Code}] = t
	return nil
}

// Seed implements [Store].
func (m *Mem) Seed(ctx context.Context, texts []Text) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		k := textKey{t.Kind, t.Code}
		if _, ok := m.texts[k]; !ok {
			m.texts[k] = t
		}
	}
	return nil
}

// Newsletters implements [Store].
func (m *Mem) Newsletters(ctx context.Context) ([]Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.SortedFunc(maps.Values(m.newsletters), func(a, b Newsletter) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

// Newsletter implements [Store].
func (m *Mem) Newsletter(ctx context.Context, id int64) (Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.newsletters[id]
	if !ok {
		return Newsletter{}, ErrNotFound
	}
	return n, nil
}

// SaveNewsletter implements [Store].
func (m *Mem) SaveNewsletter(ctx context.Context, n Newsletter) (Newsletter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == 0 {
		m.lastID++
		n.ID = m.lastID
	} else {
		old, ok := m.newsletters[n.ID]
		if !ok {
			return Newsletter{}, ErrNotFound
		}
		n.CreatedAt = old.CreatedAt
	}
	n.Buttons = slices.Clone(n.Buttons)
	if len(n.Buttons) == 0 {
		n.Buttons = nil
	}
	m.newsletters[n.ID] = n
	return n, nil
}

// DeleteNewsletter implements [Store].
func (m *Mem) DeleteNewsletter(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.newsletters[id]; !ok {
		return ErrNotFound
	}
	delete(m.newsletters, id)
	return nil
}

// AudienceChatIDs implements [Store].
func (m *Mem) AudienceChatIDs(ctx context.Context, a Audience) ([]int64, error) {
	chats, err := m.Chats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := m.Users(ctx)
	if err != nil {
		return nil, err
	}
	var chatIDs, userIDs []int64
	for _, c := range chats {
		if a == AudienceAll || a.includes(c.Type) {
			chatIDs = append(chatIDs, c.ID)
		}
	}
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	return audienceIDs(a, chatIDs, userIDs), nil
}

// Close implements [Store].
func (m *Mem) Close() error { return nil }
