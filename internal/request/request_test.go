// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package request_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.astrophena.name/bountybot/internal/request"
	"go.astrophena.name/bountybot/internal/testutil"
)

const secret = "123456:SECRET"

func testServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bot"+secret+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "missing content type", http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	})
	mux.HandleFunc("POST /bot"+secret+"/getMe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"ok": false, "error_code": 401, "description": "Unauthorized"}`)
	})
	mux.HandleFunc("GET /v1/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			http.Error(w, "missing user agent", http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"query": "`+r.URL.RawQuery+`", "lang": "`+r.Header.Get("Accept-Language")+`"}`)
	})
	mux.HandleFunc("GET /empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /huge", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `"`+strings.Repeat("a", request.MaxResponseSize)+`"`)
	})
	mux.HandleFunc("GET /html", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html></html>")
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestDo(t *testing.T) {
	t.Parallel()

	ts := testServer(t)

	cases := map[string]struct {
		params         request.Params
		want           string
		wantErr        bool
		wantStatusCode int
	}{
		"json body": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/bot" + secret + "/sendMessage",
				Body:   map[string]any{"chat_id": 1, "text": "hi"},
			},
			want: `{"chat_id":1,"text":"hi"}`,
		},
		"query and header": {
			params: request.Params{
				Method: http.MethodGet,
				URL:    ts.URL + "/v1/users?ignored=1",
				Query:  url.Values{"_start": {"0"}, "_end": {"15"}},
				Header: http.Header{"Accept-Language": {"en"}},
			},
			want: `{"query": "_end=15&_start=0", "lang": "en"}`,
		},
		"empty response": {
			params: request.Params{Method: http.MethodGet, URL: ts.URL + "/empty"},
			want:   "",
		},
		"unexpected status": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/bot" + secret + "/getMe",
			},
			wantErr:        true,
			wantStatusCode: http.StatusUnauthorized,
		},
		"not found": {
			params:         request.Params{Method: http.MethodGet, URL: ts.URL + "/missing"},
			wantErr:        true,
			wantStatusCode: http.StatusNotFound,
		},
		"invalid body": {
			params: request.Params{
				Method: http.MethodPost,
				URL:    ts.URL + "/bot" + secret + "/sendMessage",
				Body:   make(chan int),
			},
			wantErr: true,
		},
		"invalid response": {
			params:  request.Params{Method: http.MethodGet, URL: ts.URL + "/html"},
			wantErr: true,
		},
		"too large response": {
			params:  request.Params{Method: http.MethodGet, URL: ts.URL + "/huge"},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := request.Do[json.RawMessage](t.Context(), tc.params)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("Do() error = %v", err)
				}
				testutil.AssertEqual(t, string(resp), tc.want)
				return
			}
			if err == nil {
				t.Fatal("Do() succeeded, want error")
			}
			var se *request.StatusError
			testutil.AssertEqual(t, errors.As(err, &se), tc.wantStatusCode != 0)
			if se != nil {
				testutil.AssertEqual(t, se.StatusCode, tc.wantStatusCode)
			}
		})
	}
}

func TestStatusErrorBody(t *testing.T) {
	t.Parallel()

	ts := testServer(t)
	_, err := request.Do[json.RawMessage](t.Context(), request.Params{
		Method:   http.MethodPost,
		URL:      ts.URL + "/bot" + secret + "/getMe",
		Scrubber: strings.NewReplacer(secret, "[EXPUNGED]"),
	})

	if strings.Contains(err.Error(), secret) {
		t.Fatalf("error %q contains the secret", err)
	}
	if !strings.Contains(err.Error(), "/bot[EXPUNGED]/getMe") {
		t.Fatalf("error %q doesn't contain the scrubbed URL", err)
	}

	var se *request.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v isn't a *StatusError", err)
	}
	var body struct {
		Description string `json:"description"`
	}
	if err := se.DecodeBody(&body); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, body.Description, "Unauthorized")
}
