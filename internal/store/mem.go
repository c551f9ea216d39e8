// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"slices"
	"time"

	"go.astrophena.name/bountybot/internal/syncx"
)

// Mem is an in-memory [Store]. It is used in tests and when no cache is
// configured.
type Mem struct {
	opts    Options
	sweeper *sweeper
	entries syncx.Map[string, Entry]
}

// NewMem returns an empty [Mem].
func NewMem(ctx context.Context, opts Options) *Mem {
	m := &Mem{opts: opts}
	m.sweeper = opts.sweep(ctx, m.purge)
	return m
}

func (m *Mem) purge(_ context.Context, cutoff time.Time) {
	m.entries.Range(func(key string, e Entry) bool {
		if e.UpdatedAt.Before(cutoff) {
			m.entries.Delete(key)
		}
		return true
	})
}

// Load implements [Store].
func (m *Mem) Load(_ context.Context, key string) (Entry, error) {
	e, ok := m.entries.Load(key)
	if !ok || m.opts.stale(e.UpdatedAt) {
		return Entry{}, ErrNotFound
	}
	e.Value = slices.Clone(e.Value)
	return e, nil
}

// Save implements [Store].
func (m *Mem) Save(_ context.Context, key string, value []byte) error {
	m.entries.Store(key, Entry{Value: slices.Clone(value), UpdatedAt: m.opts.now()})
	return nil
}

// Close implements [Store].
func (m *Mem) Close() error {
	m.sweeper.stop()
	return nil
}
