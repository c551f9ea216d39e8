// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.astrophena.name/bountybot/internal/cli"
	"go.astrophena.name/bountybot/internal/testutil"
)

const testConfigFile = `
telegram_token: file-token
repo: acme/bounties
database: postgres://localhost/bounties
cache: /var/cache/bountybot.json
track_interval: 5m
digest_schedule: "0 9 * * FRI"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func getenvFunc(env map[string]string) func(string) string {
	return func(name string) string { return env[name] }
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	stateDir := t.TempDir()
	path := writeConfig(t, testConfigFile)

	cases := map[string]struct {
		path  string
		env   map[string]string
		flags config
		want  config
	}{
		"defaults": {
			env: map[string]string{"STATE_DIRECTORY": stateDir},
			want: config{
				Repo:            defaultRepo,
				Database:        filepath.Join(stateDir, "bountybot.db"),
				Cache:           filepath.Join(stateDir, "cache.json"),
				AdminAddr:       defaultAdminAddr,
				TrackInterval:   defaultTrackInterval,
				DigestSchedule:  defaultDigestSchedule,
				CreateBountyURL: defaultCreateBountyURL,
			},
		},
		"file": {
			path: path,
			want: config{
				TelegramToken:   "file-token",
				Repo:            "acme/bounties",
				Database:        "postgres://localhost/bounties",
				Cache:           "/var/cache/bountybot.json",
				AdminAddr:       defaultAdminAddr,
				TrackInterval:   5 * time.Minute,
				DigestSchedule:  "0 9 * * FRI",
				CreateBountyURL: defaultCreateBountyURL,
			},
		},
		"env overrides file": {
			path: path,
			env: map[string]string{
				"TELEGRAM_TOKEN":           "env-token",
				"GITHUB_TOKEN":             "ghp_test",
				"GITHUB_REPO":              "env/repo",
				"DATABASE_URL":             "mem:",
				"TRACK_INTERVAL":           "30s",
				"BOUNTIES_CREATOR_BOT_URL": "https://t.me/createbot",
				"LOG_FILE":                 "/tmp/bountybot.log",
			},
			want: config{
				TelegramToken:   "env-token",
				GitHubToken:     "ghp_test",
				Repo:            "env/repo",
				Database:        "mem:",
				Cache:           "/var/cache/bountybot.json",
				AdminAddr:       defaultAdminAddr,
				TrackInterval:   30 * time.Second,
				DigestSchedule:  "0 9 * * FRI",
				CreateBountyURL: "https://t.me/createbot",
				LogFile:         "/tmp/bountybot.log",
			},
		},
		"flags override env": {
			path: path,
			env: map[string]string{
				"GITHUB_REPO": "env/repo",
				"ADMIN_ADDR":  "localhost:8080",
				"CACHE_URL":   "mem:",
			},
			flags: config{
				Repo:      "flag/repo",
				Database:  "flag.db",
				Cache:     "flag.json",
				AdminAddr: "localhost:0",
			},
			want: config{
				TelegramToken:   "file-token",
				Repo:            "flag/repo",
				Database:        "flag.db",
				Cache:           "flag.json",
				AdminAddr:       "localhost:0",
				TrackInterval:   5 * time.Minute,
				DigestSchedule:  "0 9 * * FRI",
				CreateBountyURL: defaultCreateBountyURL,
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := loadConfig(tc.path, getenvFunc(tc.env), tc.flags)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		path       string
		env        map[string]string
		wantInvArg bool
	}{
		"missing file": {
			path: filepath.Join(t.TempDir(), "missing.yaml"),
		},
		"unknown key": {
			path: writeConfig(t, "telegram_token: x\nbroadcast: true\n"),
		},
		"invalid duration": {
			path: writeConfig(t, "track_interval: sometimes\n"),
		},
		"negative interval in file": {
			path:       writeConfig(t, "track_interval: -1m\n"),
			env:        map[string]string{"DATABASE_URL": "mem:", "CACHE_URL": "mem:"},
			wantInvArg: true,
		},
		"invalid TRACK_INTERVAL": {
			env:        map[string]string{"TRACK_INTERVAL": "often"},
			wantInvArg: true,
		},
		"zero TRACK_INTERVAL": {
			env:        map[string]string{"TRACK_INTERVAL": "0s"},
			wantInvArg: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(tc.path, getenvFunc(tc.env), config{})
			if err == nil {
				t.Fatal("loadConfig() succeeded, want error")
			}
			if tc.wantInvArg && !errors.Is(err, cli.ErrInvalidArgs) {
				t.Fatalf("loadConfig() = %v, want %v", err, cli.ErrInvalidArgs)
			}
		})
	}
}

func TestParseConfigEmpty(t *testing.T) {
	t.Parallel()

	c, err := parseConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c, config{})
}

func TestStateDir(t *testing.T) {
	t.Parallel()

	xdg := t.TempDir()
	dir, err := stateDir(getenvFunc(map[string]string{"XDG_STATE_HOME": xdg}))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, dir, filepath.Join(xdg, "bountybot"))
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("state directory %s wasn't created: %v", dir, err)
	}

	systemd := t.TempDir()
	dir, err = stateDir(getenvFunc(map[string]string{
		"STATE_DIRECTORY": systemd,
		"XDG_STATE_HOME":  xdg,
	}))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, dir, systemd)
}
