// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram is a minimal Telegram Bot API client.
package telegram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.astrophena.name/bountybot/internal/request"
)

// DefaultAPIURL is the Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// ErrBadRequest is matched by errors about requests that will never succeed
// as is: the chat doesn't exist, the bot was blocked or kicked, or the message
// is malformed.
var ErrBadRequest = errors.New("bad request")

// RetryAfterError is returned when Telegram asks to slow down.
type RetryAfterError struct {
	RetryAfter  time.Duration
	Description string
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("telegram: rate limited, retry after %v: %s", e.RetryAfter, e.Description)
}

// APIError is an error reported by the Bot API.
type APIError struct {
	Method          string
	Code            int
	Description     string
	MigrateToChatID int64
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

// Is makes 400 and 403 errors match [ErrBadRequest].
func (e *APIError) Is(target error) bool {
	return target == ErrBadRequest && (e.Code == http.StatusBadRequest || e.Code == http.StatusForbidden)
}

// chatErrors are fragments of 400 error descriptions that blame the
// recipient rather than the message.
var chatErrors = []string{
	"chat not found",
	"user not found",
	"peer_id_invalid",
	"user is deactivated",
	"group chat was upgraded",
	"have no rights to send",
	"not enough rights to send",
	"need administrator rights",
}

// ChatUnavailable reports whether err means the chat can't receive messages
// from the bot: it doesn't exist, the bot was blocked or kicked, or the bot
// may not post there. Other bad requests are about the message itself.
func ChatUnavailable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusForbidden {
		return true
	}
	if apiErr.Code != http.StatusBadRequest {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	for _, frag := range chatErrors {
		if strings.Contains(desc, frag) {
			return true
		}
	}
	return false
}

// Config configures a [Client].
type Config struct {
	Token string
	// APIURL defaults to DefaultAPIURL.
	APIURL string
	// HTTPClient must allow requests at least as long as the long polling
	// timeout. Defaults to a client with a one minute timeout.
	HTTPClient *http.Client
}

// Client calls the Telegram Bot API.
type Client struct {
	token    string
	apiURL   string
	httpc    *http.Client
	scrubber *strings.Replacer
}

// New returns a new Client.
func New(cfg Config) *Client {
	c := &Client{
		token:  cfg.Token,
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		httpc:  cfg.HTTPClient,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultAPIURL
	}
	if c.httpc == nil {
		c.httpc = &http.Client{Timeout: time.Minute}
	}
	if c.token != "" {
		c.scrubber = strings.NewReplacer(c.token, "[EXPUNGED]")
	}
	return c
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter      int   `json:"retry_after"`
		MigrateToChatID int64 `json:"migrate_to_chat_id"`
	} `json:"parameters"`
}

func call[T any](ctx context.Context, c *Client, method string, args any) (T, error) {
	resp, err := request.Do[response[T]](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        c.apiURL + "/bot" + c.token + "/" + method,
		Body:       args,
		HTTPClient: c.httpc,
		Scrubber:   c.scrubber,
	})
	if err != nil {
		var se *request.StatusError
		if !errors.As(err, &se) {
			return resp.Result, err
		}
		var errResp response[json.RawMessage]
		if se.DecodeBody(&errResp) != nil {
			return resp.Result, err
		}
		return resp.Result, apiError(method, se.StatusCode, &errResp)
	}
	if !resp.OK {
		r := response[json.RawMessage]{ErrorCode: resp.ErrorCode, Description: resp.Description, Parameters: resp.Parameters}
		return resp.Result, apiError(method, resp.ErrorCode, &r)
	}
	return resp.Result, nil
}

func apiError(method string, code int, resp *response[json.RawMessage]) error {
	if code == http.StatusTooManyRequests || resp.Parameters.RetryAfter > 0 {
		return &RetryAfterError{
			RetryAfter:  time.Duration(resp.Parameters.RetryAfter) * time.Second,
			Description: resp.Description,
		}
	}
	return &APIError{
		Method:          method,
		Code:            cmp.Or(resp.ErrorCode, code),
		Description:     resp.Description,
		MigrateToChatID: resp.Parameters.MigrateToChatID,
	}
}

// SendMessage sends a message.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	_, err := call[json.RawMessage](ctx, c, "sendMessage", msg)
	return err
}

// GetMe returns the bot user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", struct{}{})
}

// GetUpdates long polls for updates starting from offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{
		Offset:         offset,
		Timeout:        int(timeout.Seconds()),
		AllowedUpdates: []string{"message", "my_chat_member", "callback_query"},
	})
}

// AnswerCallbackQuery stops the loading indicator of a pressed button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c, "answerCallbackQuery", struct {
		CallbackQueryID string `json:"callback_query_id"`
	}{id})
	return err
}
