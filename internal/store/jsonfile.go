// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"crawshaw.dev/jsonfile"
)

type jsonFile struct {
	opts    Options
	sweeper *sweeper
	f       *jsonfile.JSONFile[fileData]
}

type fileData struct {
	Entries map[string]fileEntry `json:"entries"`
}

type fileEntry struct {
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func openJSONFile(ctx context.Context, path string, opts Options) (*jsonFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := jsonfile.Load[fileData](path)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = jsonfile.New[fileData](path)
	}
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	s := &jsonFile{opts: opts, f: f}
	s.sweeper = opts.sweep(ctx, func(_ context.Context, cutoff time.Time) {
		s.f.Write(func(d *fileData) error {
			maps.DeleteFunc(d.Entries, func(_ string, e fileEntry) bool {
				return e.UpdatedAt.Before(cutoff)
			})
			return nil
		})
	})
	return s, nil
}

func (s *jsonFile) Load(_ context.Context, key string) (Entry, error) {
	var (
		e  fileEntry
		ok bool
	)
	s.f.Read(func(d *fileData) {
		e, ok = d.Entries[key]
		e.Value = slices.Clone(e.Value)
	})
	if !ok || s.opts.stale(e.UpdatedAt) {
		return Entry{}, ErrNotFound
	}
	return Entry{Value: e.Value, UpdatedAt: e.UpdatedAt}, nil
}

func (s *jsonFile) Save(_ context.Context, key string, value []byte) error {
	return s.f.Write(func(d *fileData) error {
		if d.Entries == nil {
			d.Entries = make(map[string]fileEntry)
		}
		d.Entries[key] = fileEntry{Value: slices.Clone(value), UpdatedAt: s.opts.now()}
		return nil
	})
}

func (s *jsonFile) Close() error {
	s.sweeper.stop()
	return nil
}
