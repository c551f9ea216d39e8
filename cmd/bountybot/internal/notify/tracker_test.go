// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package notify

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/testutil"
	"go.astrophena.name/bountybot/internal/web"
)

var now = time.Date(2024, time.May, 8, 12, 0, 0, 0, time.UTC)

func bounty(number int, mod ...func(*issue.Issue)) issue.Issue {
	is := issue.Issue{
		Number:    number,
		URL:       "https://github.com/ton-society/grants-and-bounties/issues/" + strconv.Itoa(number),
		Title:     "Bounty " + strconv.Itoa(number),
		State:     issue.StateOpen,
		CreatedAt: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, m := range mod {
		m(&is)
	}
	return is
}

func withLabels(labels ...string) func(*issue.Issue) {
	return func(is *issue.Issue) { is.Labels = labels }
}

func closedAsCompleted(is *issue.Issue) {
	is.State, is.StateReason = issue.StateClosed, issue.ReasonCompleted
}

// testStore returns a store with the given snapshot and three chats, two of
// which receive broadcasts.
func testStore(t *testing.T, snapshot ...issue.Issue) *db.Mem {
	t.Helper()
	s := db.NewMem()
	ctx := t.Context()
	if err := s.UpsertIssues(ctx, snapshot); err != nil {
		t.Fatal(err)
	}
	chats := []db.Chat{
		{ID: 10, Type: "channel", Broadcast: true, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 20, Type: "supergroup", Broadcast: true, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 30, Type: "private", CreatedAt: now.Add(-time.Hour)},
	}
	for _, c := range chats {
		if err := s.UpsertChat(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func testDeps(src Source, st Store, s Sender, r Renderer) Deps {
	return Deps{
		Source:   src,
		Store:    st,
		Sender:   s,
		Renderer: r,
		Logger:   logger.Discard(),
		Now:      func() time.Time { return now },
		Fanout:   testFanout(s, new(fakeSleep)),
	}
}

func snapshotNumbers(t *testing.T, s Store) []int {
	t.Helper()
	issues, err := s.Issues(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	var nums []int
	for _, is := range issues {
		nums = append(nums, is.Number)
	}
	return nums
}

func TestTrackerRun(t *testing.T) {
	t.Parallel()

	previous := []issue.Issue{bounty(1), bounty(2), bounty(3), bounty(5)}
	current := []issue.Issue{
		bounty(4),
		bounty(3, closedAsCompleted),
		bounty(2, withLabels(issue.LabelApproved)),
		bounty(1, withLabels(issue.LabelClosingSoon)),
		bounty(5),
	}

	st := testStore(t, previous...)
	s := new(fakeSender)
	tr := NewTracker(testDeps(&fakeSource{issues: current}, st, s, fakeRenderer{}))

	sum, err := tr.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, sum, Summary{
		StartedAt:   now,
		Fetched:     5,
		Created:     1,
		ClosingSoon: 1,
		Approved:    1,
		Completed:   1,
		Report:      Report{Sent: 8},
	})
	testutil.AssertEqual(t, s.sent, []string{
		"10: created #4",
		"20: created #4",
		"10: closing_soon #1",
		"20: closing_soon #1",
		"10: approved #2",
		"20: approved #2",
		"10: completed #3",
		"20: completed #3",
	})
	testutil.AssertEqual(t, snapshotNumbers(t, st), []int{1, 2, 3, 4, 5})

	// Nothing changed since the last run.
	s.sent = nil
	sum, err = tr.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, sum, Summary{StartedAt: now, Fetched: 5})
	testutil.AssertEqual(t, len(s.sent), 0)
}

func TestTrackerSkipsBrokenChat(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	if err := st.UpsertChat(t.Context(), db.Chat{ID: 15, Broadcast: true, CreatedAt: now.Add(-150 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	s := &fakeSender{errs: map[int64][]error{15: {chatNotFound, chatNotFound}}}
	tr := NewTracker(testDeps(&fakeSource{issues: []issue.Issue{bounty(1), bounty(2)}}, st, s, fakeRenderer{}))

	sum, err := tr.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, sum.Report, Report{Sent: 4, Skipped: 2})
	testutil.AssertEqual(t, s.sent, []string{
		"10: created #1",
		"20: created #1",
		"10: created #2",
		"20: created #2",
	})
}

func TestTrackerRenderFailure(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	s := new(fakeSender)
	src := &fakeSource{issues: []issue.Issue{bounty(1), bounty(2)}}
	tr := NewTracker(testDeps(src, st, s, fakeRenderer{fail: map[int]bool{1: true}}))

	sum, err := tr.Run(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, sum.Unrendered, 1)
	testutil.AssertEqual(t, s.sent, []string{"10: created #2", "20: created #2"})
	testutil.AssertEqual(t, snapshotNumbers(t, st), []int{1, 2})
}

var errGitHubDown = errors.New("github is down")

func TestTrackerFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		src     *fakeSource
		wantErr error
	}{
		"fetch failed": {
			src:     &fakeSource{err: errGitHubDown},
			wantErr: errGitHubDown,
		},
		"duplicate numbers": {
			src:     &fakeSource{issues: []issue.Issue{bounty(7), bounty(7)}},
			wantErr: issue.ErrInconsistent,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			st := testStore(t, bounty(1))
			s := new(fakeSender)
			tr := NewTracker(testDeps(tc.src, st, s, fakeRenderer{}))

			_, err := tr.Run(t.Context())
			if err == nil {
				t.Fatal("Run() succeeded, want error")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Run() = %v, want %v", err, tc.wantErr)
			}
			testutil.AssertEqual(t, snapshotNumbers(t, st), []int{1})
			testutil.AssertEqual(t, len(s.attempts), 0)

			health := tr.Health()
			testutil.AssertEqual(t, health.OK, false)
			if !strings.Contains(health.Status, "failed") {
				t.Fatalf("Health() = %q, want it to mention the failure", health.Status)
			}
		})
	}
}

func TestTrackerSnapshotBeforeFanout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	st := testStore(t)
	s := &fakeSender{onSend: cancel}
	tr := NewTracker(testDeps(&fakeSource{issues: []issue.Issue{bounty(1), bounty(2)}}, st, s, fakeRenderer{}))

	sum, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	testutil.AssertEqual(t, sum.Report, Report{Sent: 1})
	// Undelivered notifications aren't repeated by the next run.
	testutil.AssertEqual(t, snapshotNumbers(t, st), []int{1, 2})
}

func TestTrackerSync(t *testing.T) {
	t.Parallel()

	st := testStore(t)
	s := new(fakeSender)
	tr := NewTracker(testDeps(&fakeSource{issues: []issue.Issue{bounty(1), bounty(2)}}, st, s, fakeRenderer{}))

	sum, err := tr.Sync(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, sum, Summary{StartedAt: now, Fetched: 2, Created: 2})
	testutil.AssertEqual(t, len(s.attempts), 0)
	testutil.AssertEqual(t, snapshotNumbers(t, st), []int{1, 2})
}

// blockingSource blocks in Issues until release is closed.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSource) Issues(ctx context.Context, state string) ([]issue.Issue, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestTrackerAlreadyRunning(t *testing.T) {
	t.Parallel()

	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	tr := NewTracker(testDeps(src, testStore(t), new(fakeSender), fakeRenderer{}))

	testutil.AssertEqual(t, tr.Health(), web.Check{Status: "never run", OK: true})

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.Run(t.Context())
		errCh <- err
	}()
	<-src.started
	testutil.AssertEqual(t, tr.Health(), web.Check{Status: "never run", OK: true, Running: true})

	if _, err := tr.Run(t.Context()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run() = %v, want ErrAlreadyRunning", err)
	}
	if _, err := tr.Sync(t.Context()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Sync() = %v, want ErrAlreadyRunning", err)
	}

	close(src.release)
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, tr.Health(), web.Check{
		Status:  "last run at 2024-05-08 12:00:00 succeeded",
		OK:      true,
		LastRun: now,
	})
}
