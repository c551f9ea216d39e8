// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package notify watches bounty issues and tells subscribed chats about
// notable changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/syncx"
	"go.astrophena.name/bountybot/internal/web"
)

// ErrAlreadyRunning is returned when a job is started while the previous run
// hasn't finished yet.
var ErrAlreadyRunning = errors.New("notify: already running")

// Source fetches the current state of issues. It is implemented by
// [github.Client].
type Source interface {
	Issues(ctx context.Context, state string) ([]issue.Issue, error)
}

// Store keeps the issue snapshot and the list of subscribed chats. It is
// implemented by [db.Store].
type Store interface {
	Issues(ctx context.Context) ([]issue.Issue, error)
	UpsertIssues(ctx context.Context, issues []issue.Issue) error
	BroadcastChatIDs(ctx context.Context) ([]int64, error)
}

// Renderer turns issues and digests into messages. It is implemented by
// [format.Renderer].
type Renderer interface {
	Issue(ctx context.Context, tr issue.Transition, is issue.Issue) (telegram.Message, error)
	Digest(ctx context.Context, s format.DigestStats) (telegram.Message, error)
}

// Deps are the dependencies of a [Tracker] and a [Digest].
type Deps struct {
	Source   Source
	Store    Store
	Sender   Sender
	Renderer Renderer
	// Logger, if set, replaces the logger from the context of each run.
	Logger *slog.Logger
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
	// Fanout, if set, is used instead of NewFanout(Sender).
	Fanout *Fanout
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) context(ctx context.Context) context.Context {
	if d.Logger != nil {
		return logger.Put(ctx, d.Logger)
	}
	return ctx
}

func (d Deps) fanout() *Fanout {
	if d.Fanout != nil {
		return d.Fanout
	}
	return NewFanout(d.Sender)
}

// job guards a function against concurrent runs and remembers the outcome
// of the last one.
type job struct {
	running atomic.Bool
	last    *syncx.Protected[*status]
}

type status struct {
	done     bool
	finished time.Time
	err      error
}

func newJob() job {
	return job{last: syncx.Protect(new(status))}
}

func (j *job) run(now func() time.Time, f func() error) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer j.running.Store(false)
	err := f()
	j.last.WriteAccess(func(s *status) {
		s.done, s.finished, s.err = true, now(), err
	})
	return err
}

// health reports the outcome of the last run.
func (j *job) health() web.Check {
	c := web.Check{OK: true, Running: j.running.Load()}
	j.last.ReadAccess(func(s *status) {
		c.LastRun = s.finished
		switch {
		case !s.done:
			c.Status = "never run"
		case s.err != nil:
			c.Status, c.OK = fmt.Sprintf("last run at %s failed: %v", s.finished.Format(time.DateTime), s.err), false
		default:
			c.Status = "last run at " + s.finished.Format(time.DateTime) + " succeeded"
		}
	})
	return c
}
