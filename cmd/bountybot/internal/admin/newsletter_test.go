// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package admin

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/notify"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/testutil"
	"go.astrophena.name/bountybot/internal/web"
)

func TestNewsletterCRUD(t *testing.T) {
	t.Parallel()

	cfg, _ := testConfig(t)
	get := func(path string, wantCode int) string {
		return serve(t, cfg, http.MethodGet, path, "", wantCode)
	}

	testutil.AssertEqual(t, len(testutil.UnmarshalJSON[[]db.Newsletter](t, []byte(get("/api/newsletters", http.StatusOK)))), 0)

	body := serve(t, cfg, http.MethodPost, "/api/newsletters",
		`{"content": "Hackathon **starts**", "audience": "channel", "buttons": [{"text": "Join", "url": "https://society.ton.org/hack"}]}`,
		http.StatusOK)
	want := db.Newsletter{
		ID:        1,
		Content:   "Hackathon **starts**",
		Buttons:   []db.Button{{Text: "Join", URL: "https://society.ton.org/hack"}},
		Audience:  db.AudienceChannel,
		CreatedAt: day,
	}
	testutil.AssertEqual(t, testutil.UnmarshalJSON[db.Newsletter](t, []byte(body)), want)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[db.Newsletter](t, []byte(get("/api/newsletters/1", http.StatusOK))), want)

	// Editing keeps the creation time.
	cfg.Now = func() time.Time { return day.Add(time.Hour) }
	body = serve(t, cfg, http.MethodPut, "/api/newsletters/1", `{"content": "Hackathon is over", "audience": "all"}`, http.StatusOK)
	want.Content, want.Audience, want.Buttons = "Hackathon is over", db.AudienceAll, nil
	testutil.AssertEqual(t, testutil.UnmarshalJSON[db.Newsletter](t, []byte(body)), want)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[[]db.Newsletter](t, []byte(get("/api/newsletters", http.StatusOK))), []db.Newsletter{want})

	serve(t, cfg, http.MethodPut, "/api/newsletters/9", `{"content": "x", "audience": "all"}`, http.StatusNotFound)
	get("/api/newsletters/9", http.StatusNotFound)
	get("/api/newsletters/abc", http.StatusBadRequest)

	serve(t, cfg, http.MethodDelete, "/api/newsletters/1", "", http.StatusOK)
	serve(t, cfg, http.MethodDelete, "/api/newsletters/1", "", http.StatusNotFound)
	get("/api/newsletters/1", http.StatusNotFound)
}

func TestNewsletterValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid JSON":     `{`,
		"empty content":    `{"content": "  ", "audience": "all"}`,
		"no audience":      `{"content": "Hi"}`,
		"unknown audience": `{"content": "Hi", "audience": "supergroup"}`,
		"button without text": `{"content": "Hi", "audience": "all",
			"buttons": [{"url": "https://ton.org"}]}`,
		"button without URL": `{"content": "Hi", "audience": "all",
			"buttons": [{"text": "TON"}]}`,
		"button with relative URL": `{"content": "Hi", "audience": "all",
			"buttons": [{"text": "TON", "url": "/docs"}]}`,
		"button with javascript URL": `{"content": "Hi", "audience": "all",
			"buttons": [{"text": "TON", "url": "javascript:alert(1)"}]}`,
		"too long": `{"content": "` + strings.Repeat("a", telegram.MaxMessageLength+1) + `", "audience": "all"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, s := testConfig(t)
			serve(t, cfg, http.MethodPost, "/api/newsletters", body, http.StatusBadRequest)
			list, err := s.Newsletters(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, len(list), 0)
		})
	}

	// Markup doesn't count toward the limit.
	cfg, _ := testConfig(t)
	content := "**" + strings.Repeat("a", telegram.MaxMessageLength) + "**"
	serve(t, cfg, http.MethodPost, "/api/newsletters", `{"content": "`+content+`", "audience": "all"}`, http.StatusOK)
}

// newsletterConfig returns a config with a saved newsletter for audience,
// and the sender used to deliver it. Chats are -1001 (channel), -1002
// (supergroup) and user 7.
func newsletterConfig(t *testing.T, audience db.Audience) (Config, *recordingSender) {
	t.Helper()
	cfg, s := testConfig(t)
	if err := s.UpsertChat(t.Context(), db.Chat{ID: -1002, Type: "supergroup", Broadcast: true, CreatedAt: day.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveNewsletter(t.Context(), db.Newsletter{
		Content:  "Hackathon starts",
		Buttons:  []db.Button{{Text: "Join", URL: "https://society.ton.org/hack"}},
		Audience: audience,
	}); err != nil {
		t.Fatal(err)
	}
	sender := new(recordingSender)
	cfg.Newsletters = notify.NewNewsletters(testDeps(sender), s)
	return cfg, sender
}

func TestSendNewsletter(t *testing.T) {
	t.Parallel()

	cases := map[db.Audience]struct {
		want     notify.Report
		wantSent []int64
	}{
		db.AudienceAll:     {want: notify.Report{Sent: 3}, wantSent: []int64{-1001, -1002, 7}},
		db.AudienceChannel: {want: notify.Report{Sent: 1}, wantSent: []int64{-1001}},
		db.AudienceGroup:   {want: notify.Report{Sent: 1}, wantSent: []int64{-1002}},
		db.AudiencePrivate: {want: notify.Report{Sent: 1}, wantSent: []int64{7}},
	}

	for audience, tc := range cases {
		t.Run(string(audience), func(t *testing.T) {
			cfg, sender := newsletterConfig(t, audience)
			body := serve(t, cfg, http.MethodPost, "/api/newsletters/1/send", "", http.StatusOK)
			testutil.AssertEqual(t, testutil.UnmarshalJSON[notify.Report](t, []byte(body)), tc.want)
			testutil.AssertEqual(t, sender.sentTo(), tc.wantSent)
			testutil.AssertEqual(t, sender.sent[0].ReplyMarkup, &telegram.InlineKeyboardMarkup{
				InlineKeyboard: [][]telegram.InlineKeyboardButton{{{Text: "Join", URL: "https://society.ton.org/hack"}}},
			})
		})
	}
}

func TestSendNewsletterErrors(t *testing.T) {
	t.Parallel()

	cfg, sender := newsletterConfig(t, db.AudienceAll)
	serve(t, cfg, http.MethodPost, "/api/newsletters/9/send", "", http.StatusNotFound)
	serve(t, cfg, http.MethodGet, "/api/newsletters/1/send", "", http.StatusMethodNotAllowed)

	// A second send while the first one is in progress is rejected.
	var conflict bool
	sender.onSend = func() {
		if !conflict {
			conflict = true
			serve(t, cfg, http.MethodPost, "/api/newsletters/1/send", "", http.StatusConflict)
		}
	}
	serve(t, cfg, http.MethodPost, "/api/newsletters/1/send", "", http.StatusOK)
	testutil.AssertEqual(t, conflict, true)
	testutil.AssertEqual(t, sender.sentTo(), []int64{-1001, -1002, 7})
}

func TestSendNewsletterOutlivesClient(t *testing.T) {
	t.Parallel()

	cfg, sender := newsletterConfig(t, db.AudienceAll)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender.onSend = cancel

	body := serveContext(t, ctx, cfg, http.MethodPost, "/api/newsletters/1/send", "", http.StatusOK)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[notify.Report](t, []byte(body)), notify.Report{Sent: 3})
	testutil.AssertEqual(t, sender.sentTo(), []int64{-1001, -1002, 7})

	body = serve(t, cfg, http.MethodGet, "/health", "", http.StatusOK)
	testutil.AssertEqual(t, testutil.UnmarshalJSON[web.HealthResponse](t, []byte(body)).Checks["newsletters"], web.Check{
		Status:  "last run at 2024-05-06 12:00:00 succeeded",
		OK:      true,
		LastRun: day,
	})
}

func TestPreviewNewsletter(t *testing.T) {
	t.Parallel()

	cfg, sender := newsletterConfig(t, db.AudienceChannel)
	sender.errs = map[int64]error{
		13: &telegram.APIError{Method: "sendMessage", Code: http.StatusBadRequest, Description: "Bad Request: chat not found"},
	}

	serve(t, cfg, http.MethodPost, "/api/newsletters/1/preview", `{"chat_id": 7}`, http.StatusOK)
	testutil.AssertEqual(t, sender.sentTo(), []int64{7})

	serve(t, cfg, http.MethodPost, "/api/newsletters/1/preview", `{"chat_id": 13}`, http.StatusBadRequest)
	serve(t, cfg, http.MethodPost, "/api/newsletters/1/preview", `{}`, http.StatusBadRequest)
	serve(t, cfg, http.MethodPost, "/api/newsletters/9/preview", `{"chat_id": 7}`, http.StatusNotFound)
	testutil.AssertEqual(t, sender.sentTo(), []int64{7})
}

func TestIndexNewsletters(t *testing.T) {
	t.Parallel()

	cfg, _ := newsletterConfig(t, db.AudienceGroup)
	body := serve(t, cfg, http.MethodGet, "/", "", http.StatusOK)
	for _, want := range []string{"Hackathon starts", "https://society.ton.org/hack", "group"} {
		if !strings.Contains(body, want) {
			t.Errorf("index doesn't contain %q", want)
		}
	}
}
