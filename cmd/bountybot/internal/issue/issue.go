// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package issue defines the bounty issue model and classifies changes between
// two observations of the same repository.
package issue

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Well-known labels and states.
const (
	LabelApproved    = "Approved"
	LabelClosingSoon = "Closing Soon as Not planning"

	StateOpen   = "open"
	StateClosed = "closed"

	ReasonCompleted = "completed"
)

// Issue is a bounty issue as fetched from GitHub or stored in the snapshot.
//
// Empty Assignee and StateReason, and zero UpdatedAt and ClosedAt mean the
// value is absent.
type Issue struct {
	Number      int       `json:"number"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Creator     string    `json:"creator,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Rewards     string    `json:"rewards,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	State       string    `json:"state"`
	StateReason string    `json:"state_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	ClosedAt    time.Time `json:"closed_at,omitzero"`
}

// HasLabel reports whether the issue carries the label.
func (i Issue) HasLabel(label string) bool { return slices.Contains(i.Labels, label) }

// Open reports whether the issue is open.
func (i Issue) Open() bool { return i.State == StateOpen }

// Transition is a notable change of an issue between two runs.
type Transition string

// Transitions in the order notifications about them are sent.
const (
	Created     Transition = "created"
	ClosingSoon Transition = "closing_soon"
	Approved    Transition = "approved"
	Completed   Transition = "completed"
)

// AllTransitions lists every transition in notification order.
var AllTransitions = []Transition{Created, ClosingSoon, Approved, Completed}

// Transitions holds the result of [Classify]. The lists are disjoint.
type Transitions struct {
	Created     []Issue
	ClosingSoon []Issue
	Approved    []Issue
	Completed   []Issue
}

// Get returns the issues classified as t.
func (t Transitions) Get(tr Transition) []Issue {
	switch tr {
	case Created:
		return t.Created
	case ClosingSoon:
		return t.ClosingSoon
	case Approved:
		return t.Approved
	case Completed:
		return t.Completed
	}
	return nil
}

// Len returns the number of classified issues.
func (t Transitions) Len() int {
	return len(t.Created) + len(t.ClosingSoon) + len(t.Approved) + len(t.Completed)
}

// ErrInconsistent is returned by [Classify] when issues can't be paired
// unambiguously.
var ErrInconsistent = errors.New("inconsistent issue set")

// Classify compares the previous snapshot with the current issues and sorts
// the current issues into transitions.
//
// Issues whose number is absent from previous are Created, in the order of
// current. The rest are compared with the previous issue of the same number,
// in ascending number order, and the first matching rule wins:
//
//   - ClosingSoon: the [LabelClosingSoon] label was added;
//   - Approved: the [LabelApproved] label was added and the issue was and
//     still is unassigned;
//   - Completed: the issue was closed as completed.
//
// Issues present only in previous are ignored. Duplicate numbers in either
// argument make the result ambiguous and are reported as [ErrInconsistent].
func Classify(previous, current []Issue) (Transitions, error) {
	var t Transitions

	prev, err := index(previous, "previous")
	if err != nil {
		return t, err
	}
	if _, err := index(current, "current"); err != nil {
		return t, err
	}

	var seen []Issue
	for _, cur := range current {
		if _, ok := prev[cur.Number]; !ok {
			t.Created = append(t.Created, cur)
			continue
		}
		seen = append(seen, cur)
	}
	slices.SortFunc(seen, func(a, b Issue) int { return cmp.Compare(a.Number, b.Number) })

	for _, cur := range seen {
		old := prev[cur.Number]
		switch {
		case added(old, cur, LabelClosingSoon):
			t.ClosingSoon = append(t.ClosingSoon, cur)
		case added(old, cur, LabelApproved) && cur.Assignee == "" && old.Assignee == "":
			t.Approved = append(t.Approved, cur)
		case completed(old, cur):
			t.Completed = append(t.Completed, cur)
		}
	}

	return t, nil
}

func index(issues []Issue, side string) (map[int]Issue, error) {
	m := make(map[int]Issue, len(issues))
	for _, i := range issues {
		if _, dup := m[i.Number]; dup {
			return nil, fmt.Errorf("%w: duplicate issue #%d in %s issues", ErrInconsistent, i.Number, side)
		}
		m[i.Number] = i
	}
	return m, nil
}

func added(old, cur Issue, label string) bool {
	return cur.HasLabel(label) && !old.HasLabel(label)
}

func completed(old, cur Issue) bool {
	return cur.State == StateClosed && old.State != StateClosed &&
		cur.StateReason == ReasonCompleted && old.StateReason != ReasonCompleted
}
