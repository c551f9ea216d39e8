// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"context"
	"fmt"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/web"
)

// Digest sends the weekly summary of new bounties.
type Digest struct {
	deps   Deps
	fanout *Fanout
	job    job
}

// NewDigest returns a new [Digest]. Source isn't used.
func NewDigest(d Deps) *Digest {
	return &Digest{deps: d, fanout: d.fanout(), job: newJob()}
}

// LastWeek returns the bounds of the Monday to Sunday week before the one
// containing now, in the location of now. The end is exclusive.
func LastWeek(now time.Time) (start, end time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	end = midnight.AddDate(0, 0, -daysSinceMonday)
	return end.AddDate(0, 0, -7), end
}

// WeeklyStats counts issues created during the last week, as defined by
// [LastWeek].
func WeeklyStats(issues []issue.Issue, now time.Time) format.DigestStats {
	start, end := LastWeek(now)
	var s format.DigestStats
	for _, is := range issues {
		if is.CreatedAt.Before(start) || !is.CreatedAt.Before(end) || !is.Open() {
			continue
		}
		approved := is.HasLabel(issue.LabelApproved)
		switch {
		case is.Assignee != "":
			s.Active++
		case approved:
			s.ApprovedAssignee++
		}
		if !approved {
			s.SuggestedOpinions++
		}
	}
	return s
}

// Stats returns the counters of the current digest.
func (d *Digest) Stats(ctx context.Context) (format.DigestStats, error) {
	issues, err := d.deps.Store.Issues(ctx)
	if err != nil {
		return format.DigestStats{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return WeeklyStats(issues, d.deps.now()), nil
}

// Message renders the current digest.
func (d *Digest) Message(ctx context.Context) (telegram.Message, error) {
	s, err := d.Stats(ctx)
	if err != nil {
		return telegram.Message{}, err
	}
	return d.deps.Renderer.Digest(ctx, s)
}

// Run sends the digest to all subscribed chats. It returns
// ErrAlreadyRunning if another run is in progress.
func (d *Digest) Run(ctx context.Context) (Report, error) {
	var rep Report
	err := d.job.run(d.deps.now, func() error {
		ctx := d.deps.context(ctx)
		msg, err := d.Message(ctx)
		if err != nil {
			return err
		}
		chatIDs, err := d.deps.Store.BroadcastChatIDs(ctx)
		if err != nil {
			return fmt.Errorf("loading chats: %w", err)
		}
		rep, err = d.fanout.Send(ctx, []telegram.Message{msg}, chatIDs)
		logger.Get(ctx).Info("sent weekly digest", "chats", len(chatIDs), "sent", rep.Sent, "skipped", rep.Skipped, "failed", rep.Failed)
		return err
	})
	return rep, err
}

// Health reports the outcome of the last run.
func (d *Digest) Health() web.Check { return d.job.health() }
