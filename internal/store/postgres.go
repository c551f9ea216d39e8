// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	opts    Options
	sweeper *sweeper
	pool    *pgxpool.Pool
}

func openPostgres(ctx context.Context, databaseURL string, opts Options) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: initializing database: %w", err)
	}

	s := &postgresStore{opts: opts, pool: pool}
	s.sweeper = opts.sweep(ctx, func(ctx context.Context, cutoff time.Time) {
		s.pool.Exec(ctx, `DELETE FROM documents WHERE updated_at < $1;`, cutoff)
	})
	return s, nil
}

func (s *postgresStore) Load(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := s.pool.QueryRow(ctx,
		`SELECT value, updated_at FROM documents WHERE key = $1;`, key,
	).Scan(&e.Value, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if s.opts.stale(e.UpdatedAt) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *postgresStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;
	`, key, value, s.opts.now())
	return err
}

func (s *postgresStore) Close() error {
	s.sweeper.stop()
	s.pool.Close()
	return nil
}
