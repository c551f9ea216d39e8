// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package society fetches the TON Society contributors leaderboard.
package society

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/request"
	"go.astrophena.name/bountybot/internal/store"
)

// DefaultBaseURL is the TON Society API endpoint.
const DefaultBaseURL = "https://society.ton.org"

// DefaultLimit is the number of contributors in the leaderboard.
const DefaultLimit = 15

// User is a TON Society member.
type User struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	FriendlyAddress string `json:"friendly_address"`
	TelegramURL     string `json:"telegram_url,omitempty"`
	GitHubURL       string `json:"github_url,omitempty"`
	AwardsCount     int    `json:"awards_count"`
}

// ProfileURL returns the link to the user's profile on TON Society.
func (u User) ProfileURL() string {
	return DefaultBaseURL + "/profile/" + url.PathEscape(u.Username)
}

// Client talks to the TON Society API.
type Client struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// HTTPClient is used for requests. If nil, request.DefaultClient is used.
	HTTPClient *http.Client
}

type usersResponse struct {
	Users []User `json:"users"`
}

// Top returns up to limit users with the most awards.
func (c *Client) Top(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	base := DefaultBaseURL
	if c.BaseURL != "" {
		base = strings.TrimSuffix(c.BaseURL, "/")
	}
	resp, err := request.Do[usersResponse](ctx, request.Params{
		Method: http.MethodGet,
		URL:    base + "/v1/users",
		Query: url.Values{
			"_start": {"0"},
			"_end":   {strconv.Itoa(limit)},
		},
		HTTPClient: c.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("society: fetching top: %w", err)
	}
	return resp.Users, nil
}

const cacheKey = "society-top"

// Cache keeps the last fetched leaderboard in a [store.Store].
type Cache struct {
	Store  store.Store
	Client *Client
	// Limit is passed to Client.Top.
	Limit int
}

// Refresh fetches the leaderboard and stores it.
func (c *Cache) Refresh(ctx context.Context) ([]User, error) {
	users, err := c.Client.Top(ctx, c.Limit)
	if err != nil {
		return nil, err
	}
	if err := store.SaveJSON(ctx, c.Store, cacheKey, users); err != nil {
		return nil, fmt.Errorf("society: saving top: %w", err)
	}
	logger.Get(ctx).Debug("refreshed society top", "users", len(users))
	return users, nil
}

// Top returns the stored leaderboard, fetching it if nothing fresh is
// stored.
func (c *Cache) Top(ctx context.Context) ([]User, error) {
	users, _, err := store.LoadJSON[[]User](ctx, c.Store, cacheKey)
	if errors.Is(err, store.ErrNotFound) {
		return c.Refresh(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("society: loading top: %w", err)
	}
	return users, nil
}
