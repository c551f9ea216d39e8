// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package web is a collection of functions and types for building web services.
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/benbjohnson/hashfs"

	"go.astrophena.name/bountybot/internal/logger"
)

// StatusErr is a sentinel error type used to represent HTTP status code errors.
type StatusErr int

// Error implements the error interface.
// It returns a lowercase representation of the HTTP status text for the wrapped code.
func (se StatusErr) Error() string { return strings.ToLower(http.StatusText(int(se))) }

const (
	// ErrBadRequest represents a bad request error (HTTP 400).
	ErrBadRequest StatusErr = http.StatusBadRequest
	// ErrNotFound represents a not found error (HTTP 404).
	ErrNotFound StatusErr = http.StatusNotFound
	// ErrMethodNotAllowed represents a method not allowed error (HTTP 405).
	ErrMethodNotAllowed StatusErr = http.StatusMethodNotAllowed
	// ErrConflict represents a conflict error (HTTP 409).
	ErrConflict StatusErr = http.StatusConflict
	// ErrInternalServerError represents an internal server error (HTTP 500).
	ErrInternalServerError StatusErr = http.StatusInternalServerError
)

//go:embed static templates
var embedFS embed.FS

// StaticFS contains static resources served on /static/ path prefix of
// [Server]. File names are content-hashed for caching.
var StaticFS = hashfs.NewFS(embedFS)

// TemplateFS contains HTML templates shared by web pages.
var TemplateFS = embedFS

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// RespondJSON marshals the provided response object as JSON and writes it to
// the [http.ResponseWriter].
func RespondJSON(w http.ResponseWriter, response any) { respondJSON(w, response, false) }

func respondJSON(w http.ResponseWriter, response any, wroteStatus bool) {
	b, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		if !wroteStatus {
			w.WriteHeader(http.StatusInternalServerError)
		}
		b, _ = json.Marshal(&errorResponse{Status: "error", Error: "JSON marshal error: " + err.Error()})
		w.Write(b)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
	w.Write([]byte("\n"))
}

var errorTemplate = template.Must(template.New("error.html").Funcs(template.FuncMap{
	"static": StaticFS.HashName,
}).ParseFS(embedFS, "templates/error.html"))

// RespondError writes an error response in HTML format to w. Internal server
// errors are logged with the logger from the request context.
//
// If the error is a [StatusErr] or wraps it, its HTTP status code is used.
// Otherwise, the response status code is [http.StatusInternalServerError].
//
//	// This will set the status code to 404 (Not Found).
//	web.RespondError(w, r, fmt.Errorf("chat %w", web.ErrNotFound))
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(false, w, r, err)
}

// RespondJSONError is like [RespondError], but writes the error in JSON.
func RespondJSONError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(true, w, r, err)
}

func respondError(asJSON bool, w http.ResponseWriter, r *http.Request, err error) {
	var se StatusErr
	if !errors.As(err, &se) {
		se = ErrInternalServerError
	}
	if se == ErrInternalServerError {
		logger.Get(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	if asJSON {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(se))
		respondJSON(w, &errorResponse{Status: "error", Error: err.Error()}, true)
		return
	}

	data := struct {
		StatusCode int
		StatusText string
	}{
		StatusCode: int(se),
		StatusText: http.StatusText(int(se)),
	}
	var buf bytes.Buffer
	if err := errorTemplate.Execute(&buf, data); err != nil {
		w.WriteHeader(int(se))
		fmt.Fprintf(w, "%d: %s", data.StatusCode, data.StatusText)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(int(se))
	buf.WriteTo(w)
}
