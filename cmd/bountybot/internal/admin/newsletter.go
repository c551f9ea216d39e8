// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/notify"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/web"
)

type newsletterUpdate struct {
	Content  string      `json:"content"`
	Buttons  []db.Button `json:"buttons"`
	Audience db.Audience `json:"audience"`
}

func (u newsletterUpdate) validate() error {
	if strings.TrimSpace(u.Content) == "" {
		return fmt.Errorf("%w: content must not be empty", web.ErrBadRequest)
	}
	msg := format.Newsletter(db.Newsletter{Content: u.Content})
	if n := msg.Len(); n > telegram.MaxMessageLength {
		return fmt.Errorf("%w: content is %d characters long, the limit is %d", web.ErrBadRequest, n, telegram.MaxMessageLength)
	}
	if !u.Audience.Valid() {
		return fmt.Errorf("%w: unknown audience %q", web.ErrBadRequest, u.Audience)
	}
	for i, b := range u.Buttons {
		if b.Text == "" {
			return fmt.Errorf("%w: button %d has no text", web.ErrBadRequest, i+1)
		}
		if link, err := url.Parse(b.URL); err != nil || (link.Scheme != "https" && link.Scheme != "http" && link.Scheme != "tg") || link.Host == "" {
			return fmt.Errorf("%w: button %d has invalid URL %q", web.ErrBadRequest, i+1, b.URL)
		}
	}
	return nil
}

func newsletterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		web.RespondJSONError(w, r, fmt.Errorf("%w: invalid newsletter ID %q", web.ErrBadRequest, r.PathValue("id")))
		return 0, false
	}
	return id, true
}

// newsletterError maps a missing newsletter to 404.
func newsletterError(id int64, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("newsletter %d: %w", id, web.ErrNotFound)
	}
	return err
}

func (a *api) handleGetNewsletters(w http.ResponseWriter, r *http.Request) {
	list, err := a.cfg.Store.Newsletters(r.Context())
	respond(w, r, list, err)
}

func (a *api) handleGetNewsletter(w http.ResponseWriter, r *http.Request) {
	id, ok := newsletterID(w, r)
	if !ok {
		return
	}
	n, err := a.cfg.Store.Newsletter(r.Context(), id)
	respond(w, r, n, newsletterError(id, err))
}

func (a *api) handlePostNewsletter(w http.ResponseWriter, r *http.Request) {
	a.saveNewsletter(w, r, 0)
}

func (a *api) handlePutNewsletter(w http.ResponseWriter, r *http.Request) {
	id, ok := newsletterID(w, r)
	if !ok {
		return
	}
	a.saveNewsletter(w, r, id)
}

func (a *api) saveNewsletter(w http.ResponseWriter, r *http.Request, id int64) {
	var upd newsletterUpdate
	if !readJSON(w, r, &upd) {
		return
	}
	if err := upd.validate(); err != nil {
		web.RespondJSONError(w, r, err)
		return
	}
	n, err := a.cfg.Store.SaveNewsletter(r.Context(), db.Newsletter{
		ID:        id,
		Content:   upd.Content,
		Buttons:   upd.Buttons,
		Audience:  upd.Audience,
		CreatedAt: a.now(),
	})
	if err != nil {
		web.RespondJSONError(w, r, newsletterError(id, err))
		return
	}
	logger.Get(r.Context()).Info("newsletter saved", "id", n.ID, "audience", n.Audience)
	web.RespondJSON(w, n)
}

func (a *api) handleDeleteNewsletter(w http.ResponseWriter, r *http.Request) {
	id, ok := newsletterID(w, r)
	if !ok {
		return
	}
	if err := a.cfg.Store.DeleteNewsletter(r.Context(), id); err != nil {
		web.RespondJSONError(w, r, newsletterError(id, err))
		return
	}
	logger.Get(r.Context()).Info("newsletter deleted", "id", id)
	web.RespondJSON(w, map[string]int64{"deleted": id})
}

func (a *api) handleSendNewsletter(w http.ResponseWriter, r *http.Request) {
	id, ok := newsletterID(w, r)
	if !ok {
		return
	}
	// A client that stops waiting doesn't stop the send.
	rep, err := a.cfg.Newsletters.Send(context.WithoutCancel(r.Context()), id)
	if errors.Is(err, notify.ErrAlreadyRunning) {
		web.RespondJSONError(w, r, fmt.Errorf("%w: another newsletter is being sent", web.ErrConflict))
		return
	}
	respond(w, r, rep, newsletterError(id, err))
}

type previewRequest struct {
	ChatID int64 `json:"chat_id"`
}

func (a *api) handlePreviewNewsletter(w http.ResponseWriter, r *http.Request) {
	id, ok := newsletterID(w, r)
	if !ok {
		return
	}
	var req previewRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ChatID == 0 {
		web.RespondJSONError(w, r, fmt.Errorf("%w: chat_id is required", web.ErrBadRequest))
		return
	}
	err := a.cfg.Newsletters.Preview(r.Context(), id, req.ChatID)
	if errors.Is(err, telegram.ErrBadRequest) {
		err = fmt.Errorf("%w: %v", web.ErrBadRequest, err)
	}
	respond(w, r, map[string]int64{"sent_to": req.ChatID}, newsletterError(id, err))
}
