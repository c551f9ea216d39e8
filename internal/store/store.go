// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package store keeps documents fetched from remote services, such as the
// TON Society leaderboard, so they can be served without refetching.
//
// Documents are stored in memory, in a JSON file, in SQLite or in PostgreSQL.
// Every entry is stamped with the time it was saved, and entries older than
// [Options.MaxAge] are treated as missing and eventually purged.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by [Store.Load] when there is no fresh entry.
var ErrNotFound = errors.New("store: entry not found")

// Entry is a stored document.
type Entry struct {
	Value     []byte
	UpdatedAt time.Time
}

// Store persists entries by key.
type Store interface {
	// Load returns the entry saved under key or ErrNotFound.
	Load(ctx context.Context, key string) (Entry, error)
	// Save replaces the entry under key, stamping it with the current time.
	Save(ctx context.Context, key string, value []byte) error
	// Close releases resources held by the store.
	Close() error
}

// Options configure a store.
type Options struct {
	// MaxAge is how long an entry stays fresh after it was saved. Zero keeps
	// entries forever.
	MaxAge time.Duration
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) stale(updatedAt time.Time) bool {
	return o.MaxAge > 0 && o.now().Sub(updatedAt) > o.MaxAge
}

// sweeper purges expired entries in the background.
type sweeper struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// sweep calls purge with the expiry cutoff periodically until ctx is done or
// the returned sweeper is stopped.
func (o Options) sweep(ctx context.Context, purge func(ctx context.Context, cutoff time.Time)) *sweeper {
	ctx, cancel := context.WithCancel(ctx)
	s := &sweeper{cancel: cancel, done: make(chan struct{})}
	if o.MaxAge <= 0 {
		close(s.done)
		return s
	}
	purge(ctx, o.now().Add(-o.MaxAge))
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(min(o.MaxAge/2, time.Hour))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purge(ctx, o.now().Add(-o.MaxAge))
			case <-ctx.Done():
				return
			}
		}
	}()
	return s
}

// stop stops the sweeper and waits for a running purge to return. It may be
// called more than once.
func (s *sweeper) stop() {
	if s == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Open opens the store described by dsn:
//
//   - "" or "mem:" is an in-memory store;
//   - "postgres://..." or "postgresql://..." is a PostgreSQL database;
//   - a path ending with ".json" is a JSON file;
//   - anything else, optionally prefixed with "sqlite:", is a SQLite database.
//
// Expired entries are purged in the background until ctx is canceled or the
// store is closed.
func Open(ctx context.Context, dsn string, opts Options) (Store, error) {
	switch {
	case dsn == "" || dsn == "mem:":
		return NewMem(ctx, opts), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return openPostgres(ctx, dsn, opts)
	case strings.HasSuffix(dsn, ".json"):
		return openJSONFile(ctx, dsn, opts)
	default:
		return openSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"), opts)
	}
}

// LoadJSON loads the entry under key and decodes it into a value of type T.
func LoadJSON[T any](ctx context.Context, s Store, key string) (v T, updatedAt time.Time, err error) {
	e, err := s.Load(ctx, key)
	if err != nil {
		return v, time.Time{}, err
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return v, time.Time{}, fmt.Errorf("store: decoding %s: %w", key, err)
	}
	return v, e.UpdatedAt, nil
}

// SaveJSON encodes v as JSON and saves it under key.
func SaveJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", key, err)
	}
	return s.Save(ctx, key, b)
}
