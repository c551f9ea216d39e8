// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package clitest runs command-line applications built with [cli] in tests.
package clitest

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"go.astrophena.name/bountybot/internal/cli"
)

// Case is a single invocation of an application.
type Case[App cli.App] struct {
	// Args are the command-line arguments.
	Args []string
	// Env are the environment variables visible to the application.
	Env map[string]string
	// WantErr is checked with errors.Is. If nil, the application must
	// succeed.
	WantErr error
	// WantInStdout and WantInStderr are substrings the output must contain.
	WantInStdout string
	WantInStderr string
	// CheckFunc, if set, is called after the application has run.
	CheckFunc func(t *testing.T, app App)
}

// Run runs every case against a fresh application returned by setup.
func Run[App cli.App](t *testing.T, setup func(*testing.T) App, cases map[string]Case[App]) {
	t.Helper()
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := setup(t)
			var stdout, stderr bytes.Buffer
			env := &cli.Env{
				Args:   tc.Args,
				Getenv: func(name string) string { return tc.Env[name] },
				Stdin:  strings.NewReader(""),
				Stdout: &stdout,
				Stderr: &stderr,
			}

			err := cli.Run(t.Context(), app, env)
			switch {
			case tc.WantErr == nil && err != nil:
				t.Fatalf("Run() = %v, want success (stderr: %s)", err, stderr.String())
			case tc.WantErr != nil && !errors.Is(err, tc.WantErr):
				t.Fatalf("Run() = %v, want %v", err, tc.WantErr)
			}

			if !strings.Contains(stdout.String(), tc.WantInStdout) {
				t.Errorf("stdout must contain %q, got: %q", tc.WantInStdout, stdout.String())
			}
			if !strings.Contains(stderr.String(), tc.WantInStderr) {
				t.Errorf("stderr must contain %q, got: %q", tc.WantInStderr, stderr.String())
			}

			if tc.CheckFunc != nil {
				tc.CheckFunc(t, app)
			}
		})
	}
}
