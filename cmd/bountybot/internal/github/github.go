// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package github fetches bounty issues from a GitHub repository.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v62/github"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/version"
)

// DefaultMaxRateLimitWait is the longest the client waits for a rate limit to
// reset before giving up.
const DefaultMaxRateLimitWait = time.Minute

const perPage = 100

// Config configures a [Client].
type Config struct {
	// Repo is a repository in the "owner/name" form.
	Repo string
	// Token is an optional personal access token.
	Token string
	// BaseURL overrides the GitHub API endpoint.
	BaseURL string
	// HTTPClient is used for requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// MaxRateLimitWait bounds waiting for a rate limit reset. If zero,
	// DefaultMaxRateLimitWait is used.
	MaxRateLimitWait time.Duration
}

// Client lists issues of a single repository.
type Client struct {
	gh          *gh.Client
	owner, repo string
	maxWait     time.Duration
}

// New returns a new [Client].
func New(c Config) (*Client, error) {
	owner, repo, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github: invalid repository %q, want owner/name", c.Repo)
	}

	client := gh.NewClient(c.HTTPClient)
	client.UserAgent = version.UserAgent()
	if c.Token != "" {
		client = client.WithAuthToken(c.Token)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(c.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: invalid base URL: %w", err)
		}
		client.BaseURL = u
	}

	maxWait := c.MaxRateLimitWait
	if maxWait == 0 {
		maxWait = DefaultMaxRateLimitWait
	}
	return &Client{gh: client, owner: owner, repo: repo, maxWait: maxWait}, nil
}

// Issues returns all issues with the given state ("open", "closed" or "all"),
// newest first. Pull requests are skipped.
func (c *Client) Issues(ctx context.Context, state string) ([]issue.Issue, error) {
	var issues []issue.Issue
	for page := 1; ; page++ {
		list, err := c.page(ctx, state, page)
		if err != nil {
			return nil, fmt.Errorf("github: listing issues of %s/%s (page %d): %w", c.owner, c.repo, page, err)
		}
		if len(list) == 0 {
			break
		}
		for _, gi := range list {
			if gi.IsPullRequest() {
				continue
			}
			issues = append(issues, toIssue(gi))
		}
	}
	return issues, nil
}

func (c *Client) page(ctx context.Context, state string, page int) ([]*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:     state,
		Sort:      "created",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}
	for retried := false; ; retried = true {
		list, _, err := c.gh.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
		if err == nil {
			return list, nil
		}
		wait, limited := rateLimitWait(err)
		if !limited || retried || wait > c.maxWait {
			return nil, err
		}
		logger.Get(ctx).Warn("GitHub rate limit hit, waiting", "page", page, "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// rateLimitWait reports how long to wait before retrying after err.
func rateLimitWait(err error) (time.Duration, bool) {
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return max(time.Until(rle.Rate.Reset.Time), 0), true
	}
	var arle *gh.AbuseRateLimitError
	if errors.As(err, &arle) && arle.RetryAfter != nil {
		return *arle.RetryAfter, true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func toIssue(gi *gh.Issue) issue.Issue {
	body := gi.GetBody()
	is := issue.Issue{
		Number:      gi.GetNumber(),
		URL:         gi.GetHTMLURL(),
		Title:       gi.GetTitle(),
		Creator:     gi.GetUser().GetLogin(),
		Assignee:    gi.GetAssignee().GetLogin(),
		Rewards:     issue.ExtractRewards(body),
		Summary:     issue.ExtractSummary(body),
		State:       gi.GetState(),
		StateReason: gi.GetStateReason(),
		CreatedAt:   gi.GetCreatedAt().Time,
		UpdatedAt:   gi.GetUpdatedAt().Time,
		ClosedAt:    gi.GetClosedAt().Time,
	}
	for _, a := range gi.Assignees {
		if login := a.GetLogin(); login != "" {
			is.Assignees = append(is.Assignees, login)
		}
	}
	for _, l := range gi.Labels {
		if name := l.GetName(); name != "" {
			is.Labels = append(is.Labels, name)
		}
	}
	return is
}
