// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package issue

import (
	"errors"
	"math/rand/v2"
	"testing"

	"go.astrophena.name/bountybot/internal/testutil"
)

func open(number int, labels ...string) Issue {
	return Issue{Number: number, State: StateOpen, Labels: labels}
}

func numbers(issues []Issue) []int {
	var ns []int
	for _, i := range issues {
		ns = append(ns, i.Number)
	}
	return ns
}

type classes struct {
	Created, ClosingSoon, Approved, Completed []int
}

func summarize(t Transitions) classes {
	return classes{
		Created:     numbers(t.Created),
		ClosingSoon: numbers(t.ClosingSoon),
		Approved:    numbers(t.Approved),
		Completed:   numbers(t.Completed),
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assigned := open(3, LabelApproved)
	assigned.Assignee = "alice"
	wasAssigned := open(3)
	wasAssigned.Assignee = "alice"

	closedCompleted := Issue{Number: 2, State: StateClosed, StateReason: ReasonCompleted}
	closedNotPlanned := Issue{Number: 2, State: StateClosed, StateReason: "not_planned"}

	closingAndClosed := Issue{
		Number:      4,
		State:       StateClosed,
		StateReason: ReasonCompleted,
		Labels:      []string{LabelClosingSoon},
	}
	closingAndApproved := open(4, LabelApproved, LabelClosingSoon)

	cases := map[string]struct {
		previous []Issue
		current  []Issue
		want     classes
	}{
		"approved label added": {
			previous: []Issue{open(1)},
			current:  []Issue{open(1, LabelApproved)},
			want:     classes{Approved: []int{1}},
		},
		"first seen issue": {
			current: []Issue{open(5)},
			want:    classes{Created: []int{5}},
		},
		"closed as completed": {
			previous: []Issue{open(2)},
			current:  []Issue{closedCompleted},
			want:     classes{Completed: []int{2}},
		},
		"closed as not planned": {
			previous: []Issue{open(2)},
			current:  []Issue{closedNotPlanned},
		},
		"already completed": {
			previous: []Issue{closedCompleted},
			current:  []Issue{closedCompleted},
		},
		"approved with assignee": {
			previous: []Issue{open(3)},
			current:  []Issue{assigned},
		},
		"approved after assignment": {
			previous: []Issue{wasAssigned},
			current:  []Issue{assigned},
		},
		"approved but previously assigned": {
			previous: []Issue{wasAssigned},
			current:  []Issue{open(3, LabelApproved)},
		},
		"approved label already present": {
			previous: []Issue{open(1, LabelApproved)},
			current:  []Issue{open(1, LabelApproved, "Documentation")},
		},
		"closing soon on open issue": {
			previous: []Issue{open(4)},
			current:  []Issue{open(4, LabelClosingSoon)},
			want:     classes{ClosingSoon: []int{4}},
		},
		"closing soon wins over completed": {
			previous: []Issue{open(4)},
			current:  []Issue{closingAndClosed},
			want:     classes{ClosingSoon: []int{4}},
		},
		"closing soon wins over approved": {
			previous: []Issue{open(4)},
			current:  []Issue{closingAndApproved},
			want:     classes{ClosingSoon: []int{4}},
		},
		"removed upstream": {
			previous: []Issue{open(1), open(2)},
			current:  []Issue{open(2)},
		},
		"created keeps fetch order": {
			previous: []Issue{open(1)},
			current:  []Issue{open(9), open(1), open(7), open(8)},
			want:     classes{Created: []int{9, 7, 8}},
		},
		"pairs by number, not by position": {
			previous: []Issue{open(3), open(1, LabelApproved), open(2)},
			current:  []Issue{open(10), open(2, LabelApproved), open(1, LabelApproved), open(3, LabelApproved)},
			want:     classes{Created: []int{10}, Approved: []int{2, 3}},
		},
		"ascending order within class": {
			previous: []Issue{open(1), open(2), open(3)},
			current:  []Issue{open(3, LabelApproved), open(1, LabelApproved), open(2, LabelApproved)},
			want:     classes{Approved: []int{1, 2, 3}},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Classify(tc.previous, tc.current)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, summarize(got), tc.want)
		})
	}
}

func TestClassifyDuplicates(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		previous, current []Issue
	}{
		"in previous": {
			previous: []Issue{open(1), open(1)},
			current:  []Issue{open(1)},
		},
		"in current": {
			previous: []Issue{open(1)},
			current:  []Issue{open(2), open(2)},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Classify(tc.previous, tc.current)
			if !errors.Is(err, ErrInconsistent) {
				t.Fatalf("Classify() error = %v, want %v", err, ErrInconsistent)
			}
		})
	}
}

func randomIssues(r *rand.Rand, n int) []Issue {
	labels := []string{LabelApproved, LabelClosingSoon, "Documentation"}
	states := []string{StateOpen, StateClosed}
	reasons := []string{"", ReasonCompleted, "not_planned"}

	var issues []Issue
	for _, number := range r.Perm(n) {
		if r.IntN(4) == 0 {
			continue
		}
		i := Issue{
			Number:      number,
			State:       states[r.IntN(len(states))],
			StateReason: reasons[r.IntN(len(reasons))],
		}
		for _, l := range labels {
			if r.IntN(2) == 0 {
				i.Labels = append(i.Labels, l)
			}
		}
		if r.IntN(3) == 0 {
			i.Assignee = "bob"
		}
		issues = append(issues, i)
	}
	return issues
}

func TestClassifyProperties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		previous, current := randomIssues(r, 30), randomIssues(r, 30)

		got, err := Classify(previous, current)
		if err != nil {
			t.Fatal(err)
		}

		// Idempotence.
		again, err := Classify(previous, current)
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, again, got)

		prev := make(map[int]Issue)
		for _, i := range previous {
			prev[i.Number] = i
		}
		cur := make(map[int]bool)
		for _, i := range current {
			cur[i.Number] = true
		}

		seen := make(map[int]Transition)
		for _, tr := range AllTransitions {
			for _, i := range got.Get(tr) {
				if other, dup := seen[i.Number]; dup {
					t.Fatalf("issue #%d classified as both %s and %s", i.Number, other, tr)
				}
				seen[i.Number] = tr
				if !cur[i.Number] {
					t.Fatalf("issue #%d classified as %s, but not in current", i.Number, tr)
				}
				_, inPrev := prev[i.Number]
				if (tr == Created) == inPrev {
					t.Fatalf("issue #%d classified as %s, present in previous: %v", i.Number, tr, inPrev)
				}
			}
		}

		for _, i := range got.Approved {
			if i.Assignee != "" || prev[i.Number].Assignee != "" {
				t.Fatalf("assigned issue #%d classified as approved", i.Number)
			}
		}
		for _, i := range current {
			if _, inPrev := prev[i.Number]; !inPrev {
				continue
			}
			if i.HasLabel(LabelClosingSoon) && !prev[i.Number].HasLabel(LabelClosingSoon) && seen[i.Number] != ClosingSoon {
				t.Fatalf("issue #%d got closing soon label, but classified as %q", i.Number, seen[i.Number])
			}
		}
		testutil.AssertEqual(t, got.Len(), len(seen))
	}
}

func TestTransitionsGet(t *testing.T) {
	t.Parallel()

	tr := Transitions{
		Created:     []Issue{open(1)},
		ClosingSoon: []Issue{open(2)},
		Approved:    []Issue{open(3)},
		Completed:   []Issue{open(4)},
	}
	var got []int
	for _, c := range AllTransitions {
		got = append(got, numbers(tr.Get(c))...)
	}
	testutil.AssertEqual(t, got, []int{1, 2, 3, 4})
	testutil.AssertEqual(t, tr.Len(), 4)
	if tr.Get("unknown") != nil {
		t.Fatal("Get(unknown) returned issues")
	}
}
