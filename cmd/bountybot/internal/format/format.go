// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package format renders bot messages from editable templates.
//
// Templates are Markdown with {placeholder} fields. Placeholder values are
// Markdown fragments themselves, so a template decides only where a field goes
// and the field decides how it looks. Unknown placeholders are left as is.
package format

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/society"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/tgmarkup"
)

// Message codes.
const (
	IssueCreated    = "ISSUE_CREATED"
	IssueClosing    = "ISSUE_CLOSING"
	IssueApproved   = "ISSUE_APPROVED"
	IssueCompleted  = "ISSUE_COMPLETED"
	WeeklyDigest    = "WEEKLY_DIGEST"
	TopContributors = "TOP_CONTRIBUTORS"
	MainMenu        = "MAIN_MENU"
	UnknownError    = "UNKNOWN_ERROR"
)

// Button codes that aren't message codes as well.
const (
	CreateBounty = "CREATE_BOUNTY"
)

// TopCallback is the callback data of the top contributors button.
const TopCallback = "top"

// SummaryLimit is the maximum length of a rendered summary in characters.
const SummaryLimit = 2048

const timeLayout = "2006-01-02 15:04:05"

// Code returns the message and button code used for notifications about tr.
func Code(tr issue.Transition) string {
	switch tr {
	case issue.Created:
		return IssueCreated
	case issue.ClosingSoon:
		return IssueClosing
	case issue.Approved:
		return IssueApproved
	case issue.Completed:
		return IssueCompleted
	}
	panic(fmt.Sprintf("format: unknown transition %q", tr))
}

// Texts looks up templates. It is implemented by [db.Store].
type Texts interface {
	Text(ctx context.Context, kind db.Kind, code string) (db.Text, error)
}

// Renderer renders messages using templates from Texts.
type Renderer struct {
	Texts Texts
	// CreateBountyURL is the target of the "create bounty" button. The button
	// is omitted when it's empty.
	CreateBountyURL string
}

// Issue renders a notification about an issue that went through tr.
func (r *Renderer) Issue(ctx context.Context, tr issue.Transition, is issue.Issue) (telegram.Message, error) {
	code := Code(tr)
	msg, err := r.render(ctx, code, IssueValues(is))
	if err != nil {
		return msg, err
	}
	comment, err := r.button(ctx, code)
	if err != nil {
		return msg, err
	}
	comment.URL = is.URL
	create, err := r.createButton(ctx)
	if err != nil {
		return msg, err
	}
	msg.ReplyMarkup = telegram.Keyboard(comment, create)
	return msg, nil
}

// DigestStats holds the weekly digest counters.
type DigestStats struct {
	// Active is the number of open issues with an assignee.
	Active int `json:"active"`
	// ApprovedAssignee is the number of open approved issues waiting for an
	// assignee.
	ApprovedAssignee int `json:"approved_assignee"`
	// SuggestedOpinions is the number of open issues that aren't approved
	// yet.
	SuggestedOpinions int `json:"suggested_opinions"`
}

// Digest renders the weekly digest.
func (r *Renderer) Digest(ctx context.Context, s DigestStats) (telegram.Message, error) {
	msg, err := r.render(ctx, WeeklyDigest, map[string]string{
		"num_active":             strconv.Itoa(s.Active),
		"num_approved_assignee":  strconv.Itoa(s.ApprovedAssignee),
		"num_suggested_opinions": strconv.Itoa(s.SuggestedOpinions),
	})
	if err != nil {
		return msg, err
	}
	create, err := r.createButton(ctx)
	if err != nil {
		return msg, err
	}
	msg.ReplyMarkup = telegram.Keyboard(create)
	return msg, nil
}

// Top renders the contributors leaderboard.
func (r *Renderer) Top(ctx context.Context, users []society.User) (telegram.Message, error) {
	return r.render(ctx, TopContributors, map[string]string{
		"top_contributors": topList(users),
	})
}

// Menu renders the reply to /start.
func (r *Renderer) Menu(ctx context.Context) (telegram.Message, error) {
	msg, err := r.render(ctx, MainMenu, nil)
	if err != nil {
		return msg, err
	}
	top, err := r.button(ctx, TopContributors)
	if err != nil {
		return msg, err
	}
	top.CallbackData = TopCallback
	create, err := r.createButton(ctx)
	if err != nil {
		return msg, err
	}
	msg.ReplyMarkup = telegram.Keyboard(top, create)
	return msg, nil
}

// Newsletter renders a newsletter with its link buttons.
func Newsletter(n db.Newsletter) telegram.Message {
	msg := telegram.Message{Message: tgmarkup.FromMarkdown(n.Content)}
	buttons := make([]telegram.InlineKeyboardButton, 0, len(n.Buttons))
	for _, b := range n.Buttons {
		buttons = append(buttons, telegram.InlineKeyboardButton{Text: b.Text, URL: b.URL})
	}
	msg.ReplyMarkup = telegram.Keyboard(buttons...)
	return msg
}

// Error renders the reply sent when handling a command fails.
func (r *Renderer) Error(ctx context.Context) (telegram.Message, error) {
	return r.render(ctx, UnknownError, nil)
}

func (r *Renderer) render(ctx context.Context, code string, values map[string]string) (telegram.Message, error) {
	t, err := r.Texts.Text(ctx, db.KindMessage, code)
	if err != nil {
		return telegram.Message{}, fmt.Errorf("loading message %s: %w", code, err)
	}
	msg := telegram.Message{
		Message: tgmarkup.FromMarkdown(Expand(t.Text, values)),
	}
	if t.PreviewURL != "" {
		msg.LinkPreviewOptions = &telegram.LinkPreviewOptions{URL: t.PreviewURL}
	} else {
		msg.LinkPreviewOptions = &telegram.LinkPreviewOptions{IsDisabled: true}
	}
	return msg, nil
}

func (r *Renderer) button(ctx context.Context, code string) (telegram.InlineKeyboardButton, error) {
	t, err := r.Texts.Text(ctx, db.KindButton, code)
	if err != nil {
		return telegram.InlineKeyboardButton{}, fmt.Errorf("loading button %s: %w", code, err)
	}
	return telegram.InlineKeyboardButton{Text: t.Text}, nil
}

func (r *Renderer) createButton(ctx context.Context) (telegram.InlineKeyboardButton, error) {
	if r.CreateBountyURL == "" {
		return telegram.InlineKeyboardButton{}, nil
	}
	b, err := r.button(ctx, CreateBounty)
	b.URL = r.CreateBountyURL
	return b, err
}

// Expand replaces {name} placeholders in tmpl with values. Line endings are
// normalized to "\n".
func Expand(tmpl string, values map[string]string) string {
	tmpl = strings.ReplaceAll(tmpl, "\r\n", "\n")
	if len(values) == 0 {
		return tmpl
	}
	oldnew := make([]string, 0, 2*len(values))
	for name, value := range values {
		oldnew = append(oldnew, "{"+name+"}", value)
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}

// IssuePlaceholders lists the placeholders [IssueValues] fills.
var IssuePlaceholders = []string{
	"number", "url", "title", "creator", "summary", "rewards", "labels",
	"assignee", "assignees", "state", "state_reason", "created_at",
	"updated_at", "closed_at",
}

// IssueValues returns placeholder values for an issue. Absent fields render
// as empty strings.
func IssueValues(is issue.Issue) map[string]string {
	v := make(map[string]string, len(IssuePlaceholders))
	for _, name := range IssuePlaceholders {
		v[name] = ""
	}

	if is.Number != 0 {
		v["number"] = "**#" + strconv.Itoa(is.Number) + "**"
	}
	if is.URL != "" {
		v["url"] = "[Link](" + is.URL + ")"
	}
	if is.Title != "" {
		v["title"] = "**" + tgmarkup.Escape(is.Title) + "**"
	}
	if is.Creator != "" {
		v["creator"] = "**Creator:** " + userLink(is.Creator)
	}
	if is.Summary != "" {
		v["summary"] = "**Summary:**\n" + quote(truncate(is.Summary, SummaryLimit))
	}
	if is.Rewards != "" {
		v["rewards"] = "**Rewards:**\n" + normalize(is.Rewards)
	}
	if len(is.Labels) > 0 {
		labels := make([]string, len(is.Labels))
		for i, l := range is.Labels {
			labels[i] = "🏷 `" + l + "`"
		}
		v["labels"] = strings.Join(labels, " ")
	}
	if is.Assignee != "" {
		v["assignee"] = "**Assignee:** " + userLink(is.Assignee)
	}
	if len(is.Assignees) > 0 {
		links := make([]string, len(is.Assignees))
		for i, a := range is.Assignees {
			links[i] = userLink(a)
		}
		v["assignees"] = "**Assignees:** " + strings.Join(links, ", ")
	}
	if is.State != "" {
		v["state"] = "**State:** " + is.State
	}
	if is.StateReason != "" {
		v["state_reason"] = "**State reason:** " + is.StateReason
	}
	if !is.CreatedAt.IsZero() {
		v["created_at"] = "**Created at:** " + formatTime(is.CreatedAt)
	}
	if !is.UpdatedAt.IsZero() {
		v["updated_at"] = "**Updated at:** " + formatTime(is.UpdatedAt)
	}
	if !is.ClosedAt.IsZero() {
		v["closed_at"] = "**Closed at:** " + formatTime(is.ClosedAt)
	}
	return v
}

func userLink(login string) string {
	return "[" + tgmarkup.Escape(login) + "](https://github.com/" + login + ")"
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func normalize(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") }

// truncate cuts s to limit characters, marking the cut with "...".
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

func quote(s string) string {
	lines := strings.Split(normalize(s), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

func topList(users []society.User) string {
	var sb strings.Builder
	for i, u := range users {
		if i > 0 {
			sb.WriteByte('\n')
		}
		name := u.Name
		if name == "" {
			name = u.Username
		}
		fmt.Fprintf(&sb, "%d. [%s](%s) · 🏅 %d", i+1, tgmarkup.Escape(name), u.ProfileURL(), u.AwardsCount)
	}
	return sb.String()
}
