// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"context"
	"fmt"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/web"
)

// NewsletterStore loads newsletters and their recipients. It is implemented
// by [db.Store].
type NewsletterStore interface {
	Newsletter(ctx context.Context, id int64) (db.Newsletter, error)
	AudienceChatIDs(ctx context.Context, a db.Audience) ([]int64, error)
}

// Newsletters sends newsletters composed by administrators.
type Newsletters struct {
	deps   Deps
	store  NewsletterStore
	fanout *Fanout
	job    job
}

// NewNewsletters returns a new [Newsletters]. Only Sender, Fanout, Logger
// and Now of d are used.
func NewNewsletters(d Deps, s NewsletterStore) *Newsletters {
	return &Newsletters{deps: d, store: s, fanout: d.fanout(), job: newJob()}
}

// Send sends the newsletter with id to every chat of its audience. It
// returns ErrAlreadyRunning if another newsletter is being sent.
func (n *Newsletters) Send(ctx context.Context, id int64) (Report, error) {
	var rep Report
	err := n.job.run(n.deps.now, func() error {
		ctx := n.deps.context(ctx)
		nl, err := n.store.Newsletter(ctx, id)
		if err != nil {
			return fmt.Errorf("loading newsletter %d: %w", id, err)
		}
		chatIDs, err := n.store.AudienceChatIDs(ctx, nl.Audience)
		if err != nil {
			return fmt.Errorf("loading %s chats: %w", nl.Audience, err)
		}
		rep, err = n.fanout.Send(ctx, []telegram.Message{format.Newsletter(nl)}, chatIDs)
		logger.Get(ctx).Info("sent newsletter", "id", id, "audience", nl.Audience, "chats", len(chatIDs), "sent", rep.Sent, "skipped", rep.Skipped, "failed", rep.Failed)
		return err
	})
	return rep, err
}

// Preview sends the newsletter with id to chatID only. Unlike Send, it
// reports a failed delivery.
func (n *Newsletters) Preview(ctx context.Context, id, chatID int64) error {
	nl, err := n.store.Newsletter(ctx, id)
	if err != nil {
		return fmt.Errorf("loading newsletter %d: %w", id, err)
	}
	msg := format.Newsletter(nl)
	msg.ChatID = chatID
	return n.deps.Sender.SendMessage(n.deps.context(ctx), msg)
}

// Health reports the outcome of the last send.
func (n *Newsletters) Health() web.Check { return n.job.health() }
