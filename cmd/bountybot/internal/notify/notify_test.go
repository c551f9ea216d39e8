// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/tgmarkup"
)

var (
	chatNotFound = &telegram.APIError{Method: "sendMessage", Code: 400, Description: "Bad Request: chat not found"}
	botBlocked   = &telegram.APIError{Method: "sendMessage", Code: 403, Description: "Forbidden: bot was blocked by the user"}
	serverError  = &telegram.APIError{Method: "sendMessage", Code: 502, Description: "Bad Gateway"}
	tooLong      = &telegram.APIError{Method: "sendMessage", Code: 400, Description: "Bad Request: message is too long"}
)

func retryAfter(d time.Duration) error {
	return &telegram.RetryAfterError{RetryAfter: d, Description: "Too Many Requests: retry after " + strconv.Itoa(int(d.Seconds()))}
}

// fakeSender records delivered messages. Errors queued for a chat are
// returned by the next sends to that chat, nil entries mean success.
type fakeSender struct {
	mu       sync.Mutex
	errs     map[int64][]error
	attempts []string
	sent     []string
	onSend   func()
}

func (s *fakeSender) SendMessage(ctx context.Context, msg telegram.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSend != nil {
		s.onSend()
	}
	entry := fmt.Sprintf("%d: %s", msg.ChatID, msg.Text)
	s.attempts = append(s.attempts, entry)
	if q := s.errs[msg.ChatID]; len(q) > 0 {
		err := q[0]
		s.errs[msg.ChatID] = q[1:]
		if err != nil {
			return err
		}
	}
	s.sent = append(s.sent, entry)
	return nil
}

// fakeSleep records requested pauses without waiting.
type fakeSleep struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *fakeSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func testFanout(s Sender, sl *fakeSleep) *Fanout {
	return &Fanout{
		Sender:  s,
		Limiter: rate.NewLimiter(rate.Inf, 1),
		Sleep:   sl.Sleep,
	}
}

func text(s string) telegram.Message {
	return telegram.Message{Message: tgmarkup.Message{Text: s}}
}

type fakeSource struct {
	issues []issue.Issue
	err    error
}

func (s *fakeSource) Issues(ctx context.Context, state string) ([]issue.Issue, error) {
	if state != "all" {
		return nil, fmt.Errorf("unexpected state %q", state)
	}
	return s.issues, s.err
}

var errRender = errors.New("template is broken")

// fakeRenderer renders messages as "<transition> #<number>". Issues listed
// in fail can't be rendered.
type fakeRenderer struct {
	fail map[int]bool
}

func (r fakeRenderer) Issue(ctx context.Context, tr issue.Transition, is issue.Issue) (telegram.Message, error) {
	if r.fail[is.Number] {
		return telegram.Message{}, errRender
	}
	return text(fmt.Sprintf("%s #%d", tr, is.Number)), nil
}

func (r fakeRenderer) Digest(ctx context.Context, s format.DigestStats) (telegram.Message, error) {
	return text(fmt.Sprintf("digest %d/%d/%d", s.Active, s.ApprovedAssignee, s.SuggestedOpinions)), nil
}

var errStoreDown = errors.New("database is down")

type failingStore struct{}

func (failingStore) Issues(ctx context.Context) ([]issue.Issue, error) {
	return nil, errStoreDown
}

func (failingStore) UpsertIssues(ctx context.Context, issues []issue.Issue) error {
	return errStoreDown
}

func (failingStore) BroadcastChatIDs(ctx context.Context) ([]int64, error) {
	return nil, errStoreDown
}
