// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package request calls JSON HTTP APIs.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.astrophena.name/bountybot/internal/version"
)

// DefaultClient is used when [Params.HTTPClient] is nil.
var DefaultClient = &http.Client{Timeout: 30 * time.Second}

// MaxResponseSize limits the size of response bodies.
const MaxResponseSize = 8 << 20

// Params describe a request.
type Params struct {
	Method string
	URL    string
	// Query, if set, replaces the query string of URL.
	Query url.Values
	// Header holds additional request headers.
	Header http.Header
	// Body, if not nil, is sent encoded as JSON.
	Body       any
	HTTPClient *http.Client
	// Scrubber, if set, removes secrets, like tokens embedded in URL, from
	// returned errors.
	Scrubber *strings.Replacer
}

// StatusError is returned for responses with a non-2xx status code.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), bytes.TrimSpace(e.Body))
}

// DecodeBody decodes the JSON body of the response into v. APIs often
// describe the failure there.
func (e *StatusError) DecodeBody(v any) error { return json.Unmarshal(e.Body, v) }

type scrubbedError struct {
	err      error
	scrubber *strings.Replacer
}

func (e *scrubbedError) Error() string { return e.scrubber.Replace(e.err.Error()) }
func (e *scrubbedError) Unwrap() error { return e.err }

// Do sends the request described by p and decodes the JSON response into a
// value of type Response. An empty response body leaves it zero.
func Do[Response any](ctx context.Context, p Params) (Response, error) {
	resp, err := do[Response](ctx, p)
	if err != nil && p.Scrubber != nil {
		err = &scrubbedError{err, p.Scrubber}
	}
	return resp, err
}

func do[Response any](ctx context.Context, p Params) (Response, error) {
	var resp Response

	u := p.URL
	if p.Query != nil {
		base, _, _ := strings.Cut(u, "?")
		u = base + "?" + p.Query.Encode()
	}

	var body io.Reader
	if p.Body != nil {
		b, err := json.Marshal(p.Body)
		if err != nil {
			return resp, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, u, body)
	if err != nil {
		return resp, err
	}
	for k, vv := range p.Header {
		req.Header[k] = vv
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpc := p.HTTPClient
	if httpc == nil {
		httpc = DefaultClient
	}
	res, err := httpc.Do(req)
	if err != nil {
		return resp, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize+1))
	if err != nil {
		return resp, fmt.Errorf("%s %s: reading response: %w", p.Method, u, err)
	}
	if len(b) > MaxResponseSize {
		return resp, fmt.Errorf("%s %s: response is larger than %d bytes", p.Method, u, MaxResponseSize)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return resp, &StatusError{Method: p.Method, URL: u, StatusCode: res.StatusCode, Body: b}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return resp, fmt.Errorf("%s %s: decoding response: %w", p.Method, u, err)
	}
	return resp, nil
}
