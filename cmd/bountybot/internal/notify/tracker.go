// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"context"
	"fmt"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/web"
)

// Summary describes a finished tracker run.
type Summary struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Fetched     int           `json:"fetched"`
	Created     int           `json:"created"`
	ClosingSoon int           `json:"closing_soon"`
	Approved    int           `json:"approved"`
	Completed   int           `json:"completed"`
	// Unrendered is the number of issues left out because their message
	// couldn't be rendered.
	Unrendered int    `json:"unrendered"`
	Report     Report `json:"report"`
}

// Tracker compares the repository with the stored snapshot and notifies
// subscribed chats about changes.
type Tracker struct {
	deps   Deps
	fanout *Fanout
	job    job
}

// NewTracker returns a new [Tracker].
func NewTracker(d Deps) *Tracker {
	return &Tracker{deps: d, fanout: d.fanout(), job: newJob()}
}

// Run fetches all issues and classifies them against the snapshot. It then
// replaces the snapshot and notifies subscribed chats.
//
// The snapshot is written before notifications are sent, so a run that is
// interrupted during the fanout doesn't repeat the notifications already
// sent, but drops the rest.
//
// Run returns ErrAlreadyRunning if another run is in progress.
func (t *Tracker) Run(ctx context.Context) (Summary, error) {
	return t.do(ctx, true)
}

// Sync replaces the snapshot with the current state of the repository
// without sending notifications. It is used to start tracking a repository
// without announcing every existing issue as new.
func (t *Tracker) Sync(ctx context.Context) (Summary, error) {
	return t.do(ctx, false)
}

// Health reports the outcome of the last run.
func (t *Tracker) Health() web.Check { return t.job.health() }

func (t *Tracker) do(ctx context.Context, notify bool) (Summary, error) {
	var sum Summary
	err := t.job.run(t.deps.now, func() error {
		var err error
		sum, err = t.run(t.deps.context(ctx), notify)
		return err
	})
	return sum, err
}

func (t *Tracker) run(ctx context.Context, notify bool) (sum Summary, err error) {
	log := logger.Get(ctx)
	sum.StartedAt = t.deps.now()
	defer func() { sum.Duration = t.deps.now().Sub(sum.StartedAt) }()

	previous, err := t.deps.Store.Issues(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading snapshot: %w", err)
	}
	current, err := t.deps.Source.Issues(ctx, "all")
	if err != nil {
		return sum, fmt.Errorf("fetching issues: %w", err)
	}
	sum.Fetched = len(current)

	trs, err := issue.Classify(previous, current)
	if err != nil {
		return sum, err
	}
	sum.Created, sum.ClosingSoon = len(trs.Created), len(trs.ClosingSoon)
	sum.Approved, sum.Completed = len(trs.Approved), len(trs.Completed)

	if err := t.deps.Store.UpsertIssues(ctx, current); err != nil {
		return sum, fmt.Errorf("saving snapshot: %w", err)
	}

	if !notify || trs.Len() == 0 {
		log.Debug("tracked issues", "fetched", sum.Fetched, "changed", trs.Len(), "notify", notify)
		return sum, nil
	}

	chatIDs, err := t.deps.Store.BroadcastChatIDs(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading chats: %w", err)
	}

	for _, tr := range issue.AllTransitions {
		var msgs []telegram.Message
		for _, is := range trs.Get(tr) {
			msg, err := t.deps.Renderer.Issue(ctx, tr, is)
			if err != nil {
				log.Error("failed to render notification", "number", is.Number, "transition", tr, "err", err)
				sum.Unrendered++
				continue
			}
			msgs = append(msgs, msg)
		}
		rep, err := t.fanout.Send(ctx, msgs, chatIDs)
		sum.Report.Add(rep)
		if err != nil {
			return sum, err
		}
	}

	log.Info("tracked issues",
		"fetched", sum.Fetched,
		"created", sum.Created,
		"closing_soon", sum.ClosingSoon,
		"approved", sum.Approved,
		"completed", sum.Completed,
		"chats", len(chatIDs),
		"sent", sum.Report.Sent,
		"skipped", sum.Report.Skipped,
		"failed", sum.Report.Failed,
	)
	return sum, nil
}
