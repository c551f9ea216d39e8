// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package admin implements the administration panel and its JSON API.
package admin

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/notify"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/society"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/version"
	"go.astrophena.name/bountybot/internal/web"
)

// Config configures the admin HTTP API.
type Config struct {
	// Addr is the network address passed to [web.Server].
	Addr string
	// Store is the bot database.
	Store db.Store
	// Tracker is run on demand by POST /api/track.
	Tracker interface {
		Run(ctx context.Context) (notify.Summary, error)
		Health() web.Check
	}
	// Digest, if set, reports its health.
	Digest interface {
		Health() web.Check
	}
	// Leaderboard returns the cached top contributors.
	Leaderboard interface {
		Top(ctx context.Context) ([]society.User, error)
	}
	// Newsletters sends newsletters stored in Store.
	Newsletters interface {
		Send(ctx context.Context, id int64) (notify.Report, error)
		Preview(ctx context.Context, id, chatID int64) error
		Health() web.Check
	}
	// Now returns the current time. If nil, time.Now is used.
	Now func() time.Time
	// Logs, if set, is served at /debug/logs.
	Logs logger.Streamer
	// Ready, if set, is called once the server is listening.
	Ready func(addr string)
}

//go:embed templates/*.html
var templatesFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"static": web.StaticFS.HashName,
}).ParseFS(templatesFS, "templates/index.html"))

// Handler returns an HTTP handler serving the admin panel and API.
func Handler(cfg Config) (*http.ServeMux, error) {
	if cfg.Store == nil {
		return nil, errors.New("admin: store must not be nil")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("admin: tracker must not be nil")
	}
	if cfg.Leaderboard == nil {
		return nil, errors.New("admin: leaderboard must not be nil")
	}
	if cfg.Newsletters == nil {
		return nil, errors.New("admin: newsletters must not be nil")
	}
	a := &api{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleIndex)
	mux.HandleFunc("GET /api/chats", a.handleGetChats)
	mux.HandleFunc("PUT /api/chats/{id}", a.handlePutChat)
	mux.HandleFunc("GET /api/users", a.handleGetUsers)
	mux.HandleFunc("GET /api/issues", a.handleGetIssues)
	mux.HandleFunc("GET /api/texts/{kind}", a.handleGetTexts)
	mux.HandleFunc("PUT /api/texts/{kind}/{code}", a.handlePutText)
	mux.HandleFunc("POST /api/track", a.handleTrack)
	mux.HandleFunc("GET /api/top", a.handleGetTop)
	mux.HandleFunc("GET /api/version", a.handleGetVersion)
	mux.HandleFunc("GET /api/newsletters", a.handleGetNewsletters)
	mux.HandleFunc("POST /api/newsletters", a.handlePostNewsletter)
	mux.HandleFunc("GET /api/newsletters/{id}", a.handleGetNewsletter)
	mux.HandleFunc("PUT /api/newsletters/{id}", a.handlePutNewsletter)
	mux.HandleFunc("DELETE /api/newsletters/{id}", a.handleDeleteNewsletter)
	mux.HandleFunc("POST /api/newsletters/{id}/send", a.handleSendNewsletter)
	mux.HandleFunc("POST /api/newsletters/{id}/preview", a.handlePreviewNewsletter)

	health := web.Health(mux)
	health.Register("tracker", cfg.Tracker.Health)
	if cfg.Digest != nil {
		health.Register("digest", cfg.Digest.Health)
	}
	health.Register("newsletters", cfg.Newsletters.Health)

	return mux, nil
}

// Run starts the admin HTTP server.
func Run(ctx context.Context, cfg Config) error {
	mux, err := Handler(cfg)
	if err != nil {
		return err
	}
	srv := &web.Server{
		Mux:   mux,
		Addr:  cfg.Addr,
		Logs:  cfg.Logs,
		Ready: cfg.Ready,
	}
	return srv.ListenAndServe(ctx)
}

type api struct {
	cfg Config
}

func (a *api) now() time.Time {
	if a.cfg.Now != nil {
		return a.cfg.Now()
	}
	return time.Now()
}

func (a *api) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chats, err := a.cfg.Store.Chats(ctx)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	users, err := a.cfg.Store.Users(ctx)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	issues, err := a.cfg.Store.Issues(ctx)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	messages, err := a.cfg.Store.Texts(ctx, db.KindMessage)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	buttons, err := a.cfg.Store.Texts(ctx, db.KindButton)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}
	newsletters, err := a.cfg.Store.Newsletters(ctx)
	if err != nil {
		web.RespondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, map[string]any{
		"Chats":         chats,
		"Users":         len(users),
		"Issues":        len(issues),
		"Messages":      messages,
		"Buttons":       buttons,
		"Newsletters":   newsletters,
		"Tracker":       a.cfg.Tracker.Health(),
		"Version":       version.Version(),
	}); err != nil {
		web.RespondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (a *api) handleGetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := a.cfg.Store.Chats(r.Context())
	respond(w, r, chats, err)
}

type chatUpdate struct {
	Title     *string `json:"title"`
	Broadcast *bool   `json:"broadcast"`
}

func (a *api) handlePutChat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		web.RespondJSONError(w, r, fmt.Errorf("%w: invalid chat ID %q", web.ErrBadRequest, r.PathValue("id")))
		return
	}
	var upd chatUpdate
	if !readJSON(w, r, &upd) {
		return
	}

	ctx := r.Context()
	c, err := a.cfg.Store.Chat(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		web.RespondJSONError(w, r, fmt.Errorf("chat %d: %w", id, web.ErrNotFound))
		return
	}
	if err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Broadcast != nil {
		c.Broadcast = *upd.Broadcast
	}
	if err := a.cfg.Store.UpsertChat(ctx, c); err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	logger.Get(ctx).Info("chat updated", "chat_id", c.ID, "broadcast", c.Broadcast)
	web.RespondJSON(w, c)
}

func (a *api) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.cfg.Store.Users(r.Context())
	respond(w, r, users, err)
}

func (a *api) handleGetIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := a.cfg.Store.Issues(r.Context())
	respond(w, r, issues, err)
}

func kind(w http.ResponseWriter, r *http.Request) (db.Kind, bool) {
	k := db.Kind(r.PathValue("kind"))
	if !k.Valid() {
		web.RespondJSONError(w, r, fmt.Errorf("text kind %q: %w", k, web.ErrNotFound))
		return "", false
	}
	return k, true
}

func (a *api) handleGetTexts(w http.ResponseWriter, r *http.Request) {
	k, ok := kind(w, r)
	if !ok {
		return
	}
	texts, err := a.cfg.Store.Texts(r.Context(), k)
	respond(w, r, texts, err)
}

type textUpdate struct {
	Text       string `json:"text"`
	PreviewURL string `json:"preview_url"`
}

func (a *api) handlePutText(w http.ResponseWriter, r *http.Request) {
	k, ok := kind(w, r)
	if !ok {
		return
	}
	var upd textUpdate
	if !readJSON(w, r, &upd) {
		return
	}
	if upd.Text == "" {
		web.RespondJSONError(w, r, fmt.Errorf("%w: text must not be empty", web.ErrBadRequest))
		return
	}
	if k == db.KindButton && upd.PreviewURL != "" {
		web.RespondJSONError(w, r, fmt.Errorf("%w: buttons can't have a preview URL", web.ErrBadRequest))
		return
	}

	t := db.Text{Kind: k, Code: r.PathValue("code"), Text: upd.Text, PreviewURL: upd.PreviewURL}
	if err := a.cfg.Store.SetText(r.Context(), t); err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	logger.Get(r.Context()).Info("text updated", "kind", t.Kind, "code", t.Code)
	web.RespondJSON(w, t)
}

func (a *api) handleTrack(w http.ResponseWriter, r *http.Request) {
	// The snapshot is saved before the fanout starts, so a client that goes
	// away mid-run must not cut the fanout short.
	sum, err := a.cfg.Tracker.Run(context.WithoutCancel(r.Context()))
	if errors.Is(err, notify.ErrAlreadyRunning) {
		web.RespondJSONError(w, r, fmt.Errorf("%w: tracker is already running", web.ErrConflict))
		return
	}
	if err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	web.RespondJSON(w, sum)
}

func (a *api) handleGetTop(w http.ResponseWriter, r *http.Request) {
	users, err := a.cfg.Leaderboard.Top(r.Context())
	respond(w, r, users, err)
}

// respond writes either v or err as JSON.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	web.RespondJSON(w, v)
}

const maxBodySize = 1 << 20

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		web.RespondJSONError(w, r, fmt.Errorf("%w: failed to read request body", web.ErrBadRequest))
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		web.RespondJSONError(w, r, fmt.Errorf("%w: invalid JSON: %v", web.ErrBadRequest, err))
		return false
	}
	return true
}

func (a *api) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, version.Version())
}
