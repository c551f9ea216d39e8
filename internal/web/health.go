// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.astrophena.name/bountybot/internal/syncx"
)

// Health returns the [HealthHandler] registered on mux at /health, creating it
// if necessary.
func Health(mux *http.ServeMux) *HealthHandler {
	h, pat := mux.Handler(&http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/health"}})
	if hh, ok := h.(*HealthHandler); ok && pat == "/health" {
		return hh
	}
	ret := &HealthHandler{checks: syncx.Protect(make(map[string]CheckFunc))}
	mux.Handle("/health", ret)
	return ret
}

// HealthHandler serves the state of background jobs and other subsystems as
// JSON. It responds with 503 if any check fails.
type HealthHandler struct {
	checks *syncx.Protected[map[string]CheckFunc]
}

// Check is the state of a subsystem.
type Check struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
	// Running is set while a job is in progress.
	Running bool `json:"running,omitempty"`
	// LastRun is when a job last finished.
	LastRun time.Time `json:"last_run,omitzero"`
}

// CheckFunc reports the state of a subsystem. It must be safe for concurrent
// use.
type CheckFunc func() Check

// Register adds a check under name. It panics if name is already taken.
func (h *HealthHandler) Register(name string, f CheckFunc) {
	h.checks.WriteAccess(func(checks map[string]CheckFunc) {
		if _, dup := checks[name]; dup {
			panic(fmt.Sprintf("web: health check %q registered twice", name))
		}
		checks[name] = f
	})
}

// HealthResponse is the body of a /health response. OK is false if any check
// failed.
type HealthResponse struct {
	OK     bool             `json:"ok"`
	Checks map[string]Check `json:"checks"`
}

// ServeHTTP implements the [http.Handler] interface.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{OK: true, Checks: make(map[string]Check)}
	h.checks.ReadAccess(func(checks map[string]CheckFunc) {
		for name, f := range checks {
			c := f()
			resp.OK = resp.OK && c.OK
			resp.Checks[name] = c
		}
	})
	if !resp.OK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	RespondJSON(w, resp)
}
