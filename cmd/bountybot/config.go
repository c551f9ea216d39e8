// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"go.astrophena.name/bountybot/internal/cli"
)

const (
	defaultRepo            = "ton-society/grants-and-bounties"
	defaultAdminAddr       = "localhost:3000"
	defaultTrackInterval   = 2 * time.Minute
	defaultDigestSchedule  = "0 10 * * MON"
	defaultCreateBountyURL = "https://t.me/footstepsbot"
)

// config holds settings read from the config file, environment and flags.
type config struct {
	TelegramToken   string        `yaml:"telegram_token"`
	GitHubToken     string        `yaml:"github_token"`
	Repo            string        `yaml:"repo"`
	Database        string        `yaml:"database"`
	Cache           string        `yaml:"cache"`
	AdminAddr       string        `yaml:"admin_addr"`
	TrackInterval   time.Duration `yaml:"track_interval"`
	DigestSchedule  string        `yaml:"digest_schedule"`
	CreateBountyURL string        `yaml:"create_bounty_url"`
	LogFile         string        `yaml:"log_file"`
}

// loadConfig merges, from lowest to highest precedence, the defaults, the
// config file at path (if any), environment variables and flags.
func loadConfig(path string, getenv func(string) string, flags config) (config, error) {
	var file config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("reading config: %w", err)
		}
		if file, err = parseConfig(b); err != nil {
			return config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	var interval time.Duration
	if s := getenv("TRACK_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return config{}, fmt.Errorf("%w: invalid TRACK_INTERVAL %q", cli.ErrInvalidArgs, s)
		}
		interval = d
	}

	c := config{
		TelegramToken:   cmp.Or(getenv("TELEGRAM_TOKEN"), file.TelegramToken),
		GitHubToken:     cmp.Or(getenv("GITHUB_TOKEN"), file.GitHubToken),
		Repo:            cmp.Or(flags.Repo, getenv("GITHUB_REPO"), file.Repo, defaultRepo),
		Database:        cmp.Or(flags.Database, getenv("DATABASE_URL"), file.Database),
		Cache:           cmp.Or(flags.Cache, getenv("CACHE_URL"), file.Cache),
		AdminAddr:       cmp.Or(flags.AdminAddr, getenv("ADMIN_ADDR"), file.AdminAddr, defaultAdminAddr),
		TrackInterval:   cmp.Or(interval, file.TrackInterval, defaultTrackInterval),
		DigestSchedule:  cmp.Or(file.DigestSchedule, defaultDigestSchedule),
		CreateBountyURL: cmp.Or(getenv("BOUNTIES_CREATOR_BOT_URL"), file.CreateBountyURL, defaultCreateBountyURL),
		LogFile:         cmp.Or(flags.LogFile, getenv("LOG_FILE"), file.LogFile),
	}
	if c.TrackInterval < 0 {
		return config{}, fmt.Errorf("%w: track interval must be positive", cli.ErrInvalidArgs)
	}

	if c.Database == "" || c.Cache == "" {
		dir, err := stateDir(getenv)
		if err != nil {
			return config{}, err
		}
		c.Database = cmp.Or(c.Database, filepath.Join(dir, "bountybot.db"))
		c.Cache = cmp.Or(c.Cache, filepath.Join(dir, "cache.json"))
	}
	return c, nil
}

// parseConfig decodes a YAML config file. Unknown keys are rejected.
func parseConfig(b []byte) (config, error) {
	var c config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return config{}, err
	}
	return c, nil
}

func stateDir(getenv func(string) string) (string, error) {
	dir := getenv("STATE_DIRECTORY")
	if dir == "" {
		xdgStateHome := getenv("XDG_STATE_HOME")
		if xdgStateHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			xdgStateHome = filepath.Join(home, ".local", "state")
		}
		dir = filepath.Join(xdgStateHome, "bountybot")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}
