// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
)

// DefaultInterval is the default pause between two sends.
const DefaultInterval = 50 * time.Millisecond

// Sender delivers a message to a chat. It is implemented by
// [telegram.Client].
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.Message) error
}

// Report counts outcomes of delivery attempts.
type Report struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Retried int `json:"retried"`
}

// Add adds the counters of o to r.
func (r *Report) Add(o Report) {
	r.Sent += o.Sent
	r.Skipped += o.Skipped
	r.Failed += o.Failed
	r.Retried += o.Retried
}

// defaultLimiter paces fanouts without their own limiter.
var defaultLimiter = rate.NewLimiter(rate.Every(DefaultInterval), 1)

// Fanout sends messages to chats one by one.
//
// A delivery rejected as a bad request (unknown chat, blocked bot) is
// skipped. A rejection that blames the message rather than the chat is
// logged as a warning, since it usually repeats for every chat. A delivery that hits the rate limit is retried once after the
// requested pause. Any other failure is logged and the fanout moves on, so
// one broken chat doesn't hold back the others.
type Fanout struct {
	Sender Sender
	// Limiter paces sends. If nil, a limiter shared by all such fanouts
	// allows one send per DefaultInterval.
	Limiter *rate.Limiter
	// Sleep waits for d or until ctx is done. If nil, a timer is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewFanout returns a [Fanout] with the default pacing.
func NewFanout(s Sender) *Fanout {
	return &Fanout{
		Sender:  s,
		Limiter: rate.NewLimiter(rate.Every(DefaultInterval), 1),
	}
}

// Send delivers every message to every chat, messages in the outer loop. The
// returned error is non-nil only when ctx is done before the fanout finished.
func (f *Fanout) Send(ctx context.Context, msgs []telegram.Message, chatIDs []int64) (Report, error) {
	var rep Report
	lim := cmp.Or(f.Limiter, defaultLimiter)
	log := logger.Get(ctx)

	for _, msg := range msgs {
		for _, chatID := range chatIDs {
			if err := lim.Wait(ctx); err != nil {
				return rep, ctxErr(ctx, err)
			}
			msg.ChatID = chatID
			if err := f.deliver(ctx, log, msg, &rep); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// deliver makes one delivery attempt and at most one retry. It returns an
// error only if ctx is done.
func (f *Fanout) deliver(ctx context.Context, log *slog.Logger, msg telegram.Message, rep *Report) error {
	err := f.Sender.SendMessage(ctx, msg)

	var (
		retryAfter *telegram.RetryAfterError
		retried    bool
	)
	if errors.As(err, &retryAfter) {
		log.Info("rate limited, retrying", "chat_id", msg.ChatID, "retry_after", retryAfter.RetryAfter)
		if err := f.sleep(ctx, retryAfter.RetryAfter); err != nil {
			return err
		}
		rep.Retried++
		retried = true
		err = f.Sender.SendMessage(ctx, msg)
	}

	switch {
	case err == nil:
		rep.Sent++
	case ctx.Err() != nil:
		return ctx.Err()
	case retried:
		log.Warn("failed to send message after retry", "chat_id", msg.ChatID, "err", err)
		rep.Failed++
	case telegram.ChatUnavailable(err):
		log.Debug("skipping chat", "chat_id", msg.ChatID, "err", err)
		rep.Skipped++
	case errors.Is(err, telegram.ErrBadRequest):
		log.Warn("message rejected", "chat_id", msg.ChatID, "err", err)
		rep.Skipped++
	default:
		log.Warn("failed to send message", "chat_id", msg.ChatID, "err", err)
		rep.Failed++
	}
	return nil
}

func (f *Fanout) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep != nil {
		return f.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ctxErr prefers the context error over errors from rate.Limiter.Wait, which
// also fails when the deadline is too close to wait.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
