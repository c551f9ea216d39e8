// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/notify"
	"go.astrophena.name/bountybot/internal/logger"
)

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func (e *engine) jobs() []job {
	return []job{
		{
			name: "track",
			spec: "@every " + e.cfg.TrackInterval.String(),
			run: func(ctx context.Context) error {
				_, err := e.tracker.Run(ctx)
				return err
			},
		},
		{
			name: "digest",
			spec: e.cfg.DigestSchedule,
			run: func(ctx context.Context) error {
				_, err := e.digest.Run(ctx)
				return err
			},
		},
		{
			name: "top",
			spec: "@hourly",
			run: func(ctx context.Context) error {
				_, err := e.society.Refresh(ctx)
				return err
			},
		},
	}
}

// schedule returns a scheduler running jobs until it is stopped. A job whose
// previous run is still in progress is skipped.
func (e *engine) schedule(ctx context.Context) (*cron.Cron, error) {
	log := logger.Get(ctx)
	cl := cronLogger{log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, j := range e.jobs() {
		if _, err := c.AddFunc(j.spec, func() {
			err := j.run(ctx)
			switch {
			case errors.Is(err, notify.ErrAlreadyRunning):
				log.Info("skipping job, already running", "job", j.name)
			case err != nil && ctx.Err() == nil:
				log.Error("job failed", "job", j.name, "err", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("scheduling %s job with %q: %w", j.name, j.spec, err)
		}
	}
	return c, nil
}

// cronLogger adapts [slog.Logger] to [cron.Logger].
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
