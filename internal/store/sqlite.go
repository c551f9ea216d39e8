// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/tailscale/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

type sqliteStore struct {
	opts    Options
	sweeper *sweeper
	db      *sql.DB
}

func openSQLite(ctx context.Context, path string, opts Options) (*sqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		sqliteSchema,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: initializing %s: %w", path, err)
		}
	}

	s := &sqliteStore{opts: opts, db: db}
	s.sweeper = opts.sweep(ctx, func(ctx context.Context, cutoff time.Time) {
		s.db.ExecContext(ctx, `DELETE FROM documents WHERE updated_at < ?;`, cutoff.UnixMilli())
	})
	return s, nil
}

func (s *sqliteStore) Load(ctx context.Context, key string) (Entry, error) {
	var (
		e         Entry
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM documents WHERE key = ?;`, key,
	).Scan(&e.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = time.UnixMilli(updatedAt)
	if s.opts.stale(e.UpdatedAt) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *sqliteStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
	`, key, value, s.opts.now().UnixMilli())
	return err
}

func (s *sqliteStore) Close() error {
	s.sweeper.stop()
	return s.db.Close()
}
