// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tailscale/sqlite"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
)

// SQL is a [Store] backed by SQLite or PostgreSQL.
type SQL struct {
	db       *sql.DB
	postgres bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS issues (
		number BIGINT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		creator TEXT NOT NULL,
		assignee TEXT NOT NULL,
		assignees TEXT NOT NULL,
		labels TEXT NOT NULL,
		rewards TEXT NOT NULL,
		summary TEXT NOT NULL,
		state TEXT NOT NULL,
		state_reason TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		closed_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id BIGINT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		username TEXT NOT NULL,
		broadcast INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		username TEXT NOT NULL,
		language_code TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS texts (
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		text TEXT NOT NULL,
		preview_url TEXT NOT NULL,
		PRIMARY KEY (kind, code)
	)`,
	`CREATE TABLE IF NOT EXISTS newsletters (
		id BIGINT PRIMARY KEY,
		content TEXT NOT NULL,
		buttons TEXT NOT NULL,
		audience TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
}

// OpenSQLite opens the SQLite database at path, creating it if needed.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers, so one connection is enough.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, err
		}
	}
	return initSQL(ctx, db, false)
}

// OpenPostgres connects to the PostgreSQL database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return initSQL(ctx, db, true)
}

func initSQL(ctx context.Context, db *sql.DB, postgres bool) (*SQL, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQL{db: db, postgres: postgres}, nil
}

// rebind rewrites ? placeholders into $N ones for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var (
		sb strings.Builder
		n  int
	)
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQL) exec(ctx context.Context, e execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQL) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQL) tx(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var ret []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, rows.Err()
}

const issueColumns = `number, url, title, creator, assignee, assignees, labels, rewards,
	summary, state, state_reason, created_at, updated_at, closed_at`

// Issues implements [Store].
func (s *SQL) Issues(ctx context.Context) ([]issue.Issue, error) {
	rows, err := s.query(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY number`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (issue.Issue, error) {
		var (
			is                             issue.Issue
			assignees, labels              string
			createdAt, updatedAt, closedAt int64
		)
		if err := rows.Scan(
			&is.Number, &is.URL, &is.Title, &is.Creator, &is.Assignee, &assignees, &labels, &is.Rewards,
			&is.Summary, &is.State, &is.StateReason, &createdAt, &updatedAt, &closedAt,
		); err != nil {
			return is, err
		}
		if err := json.Unmarshal([]byte(assignees), &is.Assignees); err != nil {
			return is, fmt.Errorf("issue #%d: assignees: %w", is.Number, err)
		}
		if err := json.Unmarshal([]byte(labels), &is.Labels); err != nil {
			return is, fmt.Errorf("issue #%d: labels: %w", is.Number, err)
		}
		is.Assignees, is.Labels = clean(is.Assignees), clean(is.Labels)
		is.CreatedAt, is.UpdatedAt, is.ClosedAt = fromUnix(createdAt), fromUnix(updatedAt), fromUnix(closedAt)
		return is, nil
	})
}

// UpsertIssues implements [Store].
func (s *SQL) UpsertIssues(ctx context.Context, issues []issue.Issue) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		for _, is := range issues {
			assignees, err := json.Marshal(clean(is.Assignees))
			if err != nil {
				return err
			}
			labels, err := json.Marshal(clean(is.Labels))
			if err != nil {
				return err
			}
			if _, err := s.exec(ctx, tx, `
				INSERT INTO issues (`+issueColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (number) DO UPDATE SET
					url = excluded.url,
					title = excluded.title,
					creator = excluded.creator,
					assignee = excluded.assignee,
					assignees = excluded.assignees,
					labels = excluded.labels,
					rewards = excluded.rewards,
					summary = excluded.summary,
					state = excluded.state,
					state_reason = excluded.state_reason,
					created_at = excluded.created_at,
					updated_at = excluded.updated_at,
					closed_at = excluded.closed_at
			`,
				is.Number, is.URL, is.Title, is.Creator, is.Assignee, string(assignees), string(labels), is.Rewards,
				is.Summary, is.State, is.StateReason, toUnix(is.CreatedAt), toUnix(is.UpdatedAt), toUnix(is.ClosedAt),
			); err != nil {
				return fmt.Errorf("issue #%d: %w", is.Number, err)
			}
		}
		return nil
	})
}

const chatColumns = `id, type, title, username, broadcast, created_at, updated_at`

func scanChat(rows interface{ Scan(...any) error }) (Chat, error) {
	var (
		c                    Chat
		broadcast            int64
		createdAt, updatedAt int64
	)
	if err := rows.Scan(&c.ID, &c.Type, &c.Title, &c.Username, &broadcast, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.Broadcast = broadcast != 0
	c.CreatedAt, c.UpdatedAt = fromUnix(createdAt), fromUnix(updatedAt)
	return c, nil
}

// Chat implements [Store].
func (s *SQL) Chat(ctx context.Context, id int64) (Chat, error) {
	c, err := scanChat(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+chatColumns+` FROM chats WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	return c, err
}

// Chats implements [Store].
func (s *SQL) Chats(ctx context.Context) ([]Chat, error) {
	rows, err := s.query(ctx, `SELECT `+chatColumns+` FROM chats ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (Chat, error) { return scanChat(rows) })
}

// UpsertChat implements [Store].
func (s *SQL) UpsertChat(ctx context.Context, c Chat) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO chats (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type,
			title = excluded.title,
			username = excluded.username,
			broadcast = excluded.broadcast,
			updated_at = excluded.updated_at
	`, c.ID, c.Type, c.Title, c.Username, boolToInt(c.Broadcast), toUnix(c.CreatedAt), toUnix(c.UpdatedAt))
	return err
}

// MigrateChat implements [Store].
func (s *SQL) MigrateChat(ctx context.Context, from, to int64) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM chats WHERE id = ?`, to); err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, `UPDATE chats SET id = ? WHERE id = ?`, to, from)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// BroadcastChatIDs implements [Store].
func (s *SQL) BroadcastChatIDs(ctx context.Context) ([]int64, error) {
	return s.ids(ctx, `SELECT id FROM chats WHERE broadcast = 1 ORDER BY created_at, id`)
}

func (s *SQL) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (int64, error) {
		var id int64
		return id, rows.Scan(&id)
	})
}

const userColumns = `id, first_name, last_name, username, language_code, created_at, updated_at`

// Users implements [Store].
func (s *SQL) Users(ctx context.Context) ([]User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (User, error) {
		var (
			u                    User
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &createdAt, &updatedAt); err != nil {
			return u, err
		}
		u.CreatedAt, u.UpdatedAt = fromUnix(createdAt), fromUnix(updatedAt)
		return u, nil
	})
}

// UpsertUser implements [Store].
func (s *SQL) UpsertUser(ctx context.Context, u User) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			language_code = excluded.language_code,
			updated_at = excluded.updated_at
	`, u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode, toUnix(u.CreatedAt), toUnix(u.UpdatedAt))
	return err
}

// Text implements [Store].
func (s *SQL) Text(ctx context.Context, kind Kind, code string) (Text, error) {
	if err := s.Seed(ctx, []Text{{Kind: kind, Code: code, Text: code}}); err != nil {
		return Text{}, err
	}
	t := Text{Kind: kind, Code: code}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT text, preview_url FROM texts WHERE kind = ? AND code = ?
	`), string(kind), code).Scan(&t.Text, &t.PreviewURL)
	return t, err
}

// Texts implements [Store].
func (s *SQL) Texts(ctx context.Context, kind Kind) ([]Text, error) {
	rows, err := s.query(ctx, `SELECT code, text, preview_url FROM texts WHERE kind = ? ORDER BY code`, string(kind))
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (Text, error) {
		t := Text{Kind: kind}
		return t, rows.Scan(&t.Code, &t.Text, &t.PreviewURL)
	})
}

// SetText implements [Store].
func (s *SQL) SetText(ctx context.Context, t Text) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO texts (kind, code, text, preview_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (kind, code) DO UPDATE SET
			text = excluded.text,
			preview_url = excluded.preview_url
	`, string(t.Kind), t.Code, t.Text, t.PreviewURL)
	return err
}

// Seed implements [Store].
func (s *SQL) Seed(ctx context.Context, texts []Text) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		for _, t := range texts {
			if _, err := s.exec(ctx, tx, `
				INSERT INTO texts (kind, code, text, preview_url)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (kind, code) DO NOTHING
			`, string(t.Kind), t.Code, t.Text, t.PreviewURL); err != nil {
				return err
			}
		}
		return nil
	})
}

const newsletterColumns = `id, content, buttons, audience, created_at`

func scanNewsletter(rows interface{ Scan(...any) error }) (Newsletter, error) {
	var (
		n         Newsletter
		buttons   string
		createdAt int64
	)
	if err := rows.Scan(&n.ID, &n.Content, &buttons, &n.Audience, &createdAt); err != nil {
		return n, err
	}
	if err := json.Unmarshal([]byte(buttons), &n.Buttons); err != nil {
		return n, fmt.Errorf("newsletter %d: buttons: %w", n.ID, err)
	}
	n.CreatedAt = fromUnix(createdAt)
	return n, nil
}

// Newsletters implements [Store].
func (s *SQL) Newsletters(ctx context.Context) ([]Newsletter, error) {
	rows, err := s.query(ctx, `SELECT `+newsletterColumns+` FROM newsletters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(rows *sql.Rows) (Newsletter, error) { return scanNewsletter(rows) })
}

// Newsletter implements [Store].
func (s *SQL) Newsletter(ctx context.Context, id int64) (Newsletter, error) {
	n, err := scanNewsletter(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+newsletterColumns+` FROM newsletters WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return Newsletter{}, ErrNotFound
	}
	return n, err
}

// SaveNewsletter implements [Store].
func (s *SQL) SaveNewsletter(ctx context.Context, n Newsletter) (Newsletter, error) {
	if len(n.Buttons) == 0 {
		n.Buttons = nil
	}
	buttons, err := json.Marshal(n.Buttons)
	if err != nil {
		return Newsletter{}, err
	}
	err = s.tx(ctx, func(tx *sql.Tx) error {
		if n.ID != 0 {
			res, err := s.exec(ctx, tx, `
				UPDATE newsletters SET content = ?, buttons = ?, audience = ? WHERE id = ?
			`, n.Content, string(buttons), string(n.Audience), n.ID)
			if err != nil {
				return err
			}
			if affected, err := res.RowsAffected(); err != nil {
				return err
			} else if affected == 0 {
				return ErrNotFound
			}
			return nil
		}
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM newsletters`).Scan(&n.ID); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `
			INSERT INTO newsletters (`+newsletterColumns+`) VALUES (?, ?, ?, ?, ?)
		`, n.ID, n.Content, string(buttons), string(n.Audience), toUnix(n.CreatedAt))
		return err
	})
	if err != nil {
		return Newsletter{}, err
	}
	return s.Newsletter(ctx, n.ID)
}

// DeleteNewsletter implements [Store].
func (s *SQL) DeleteNewsletter(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM newsletters WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AudienceChatIDs implements [Store].
func (s *SQL) AudienceChatIDs(ctx context.Context, a Audience) ([]int64, error) {
	var (
		chatIDs, userIDs []int64
		err              error
	)
	switch a {
	case AudienceAll:
		chatIDs, err = s.ids(ctx, `SELECT id FROM chats ORDER BY created_at, id`)
	case AudienceChannel:
		chatIDs, err = s.ids(ctx, `SELECT id FROM chats WHERE type = 'channel' ORDER BY created_at, id`)
	case AudienceGroup:
		chatIDs, err = s.ids(ctx, `SELECT id FROM chats WHERE type IN ('group', 'supergroup') ORDER BY created_at, id`)
	}
	if err != nil {
		return nil, err
	}
	if a == AudienceAll || a == AudiencePrivate {
		if userIDs, err = s.ids(ctx, `SELECT id FROM users ORDER BY created_at, id`); err != nil {
			return nil, err
		}
	}
	return audienceIDs(a, chatIDs, userIDs), nil
}

// Close implements [Store].
func (s *SQL) Close() error { return s.db.Close() }

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// clean turns empty slices into nil ones, so an issue reads back the same way
// it was written.
func clean(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}
