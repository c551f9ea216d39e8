// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package logger builds the structured logger used by the bot and provides a
// thread-safe ring buffer of log lines that can be streamed over HTTP.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the basic logger type: a printf-like func. Like [log.Printf], the
// format need not end in a newline. Logf functions must be safe for concurrent
// use.
type Logf func(format string, args ...any)

// Write implements the [io.Writer] interface.
func (f Logf) Write(p []byte) (n int, err error) {
	f("%s", p)
	return len(p), nil
}

// Options configure [New].
type Options struct {
	// Level is the minimum level of logged records. If nil, info is used.
	Level slog.Leveler
	// Stderr is where human-readable logs go. Colors are enabled only when
	// it is a terminal.
	Stderr io.Writer
	// File, if set, is a path to a log file rotated by size.
	File string
	// Streamer, if set, receives a plain-text copy of every record.
	Streamer Streamer
}

// New returns a logger writing to all destinations configured by opts and a
// function that releases the log file, if any.
func New(opts Options) (*slog.Logger, func() error) {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	handlers := []slog.Handler{
		tint.NewHandler(stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(stderr) || os.Getenv("NO_COLOR") != "",
		}),
	}

	closeFunc := func() error { return nil }
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		handlers = append(handlers, tint.NewHandler(lj, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}))
		closeFunc = lj.Close
	}

	if opts.Streamer != nil {
		handlers = append(handlers, tint.NewHandler(opts.Streamer, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    true,
		}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFunc
	}
	return slog.New(multiHandler(handlers)), closeFunc
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make(multiHandler, len(m))
	for i, h := range m {
		hs[i] = h.WithAttrs(attrs)
	}
	return hs
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	hs := make(multiHandler, len(m))
	for i, h := range m {
		hs[i] = h.WithGroup(name)
	}
	return hs
}

type ctxKey struct{}

// Put returns a copy of ctx that carries l.
func Put(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Get returns the logger stored in ctx by [Put] or [slog.Default].
func Get(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
