// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Bountybot watches bounty issues of a GitHub repository and announces notable
changes in Telegram chats.

# Usage

	$ bountybot [flags...] <command>

# Commands

  - run: Run the bot. This polls Telegram for updates, serves the admin
    panel, tracks issues every TRACK_INTERVAL, sends the weekly digest and
    refreshes the TON Society leaderboard every hour.
  - track: Track issues once. With -sync, only the snapshot is updated and
    nothing is sent. Use it before the first run to avoid announcing every
    existing issue as new.
  - digest: Send the weekly digest once.
  - top: Refresh the TON Society leaderboard and print it.
  - admin: Serve only the admin panel.

A run of the tracker fetches all issues of the repository and compares them
with the snapshot saved by the previous run. Subscribed chats are notified
about issues that were created, marked with the "Closing Soon as Not
planning" label, approved without an assignee, or closed as completed.

# Environment Variables

  - TELEGRAM_TOKEN: Telegram bot token. Required unless -dry is set.
  - GITHUB_TOKEN: GitHub personal access token. Optional, but raises the API
    rate limit.
  - GITHUB_REPO: Repository to watch. Defaults to
    "ton-society/grants-and-bounties".
  - DATABASE_URL: Database to use: a path to a SQLite file, a PostgreSQL URL
    or "mem:". Defaults to bountybot.db in the state directory.
  - CACHE_URL: Key-value store for cached data, in the same form as
    DATABASE_URL, or a path to a JSON file. Defaults to cache.json in the state
    directory.
  - STATE_DIRECTORY: Directory for the default database and cache. Defaults
    to $XDG_STATE_HOME/bountybot.
  - ADMIN_ADDR: Address of the admin panel. Defaults to "localhost:3000".
  - TRACK_INTERVAL: How often to track issues. Defaults to "2m".
  - BOUNTIES_CREATOR_BOT_URL: Link of the "Create Your Own Bounty" button.
  - LOG_FILE: File to write logs to, in addition to stderr. It is rotated
    when it grows large.

Flags take precedence over environment variables.

# Configuration File

Settings can also be read from a YAML file passed with -config. Environment
variables and flags take precedence over the file:

	telegram_token: "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11"
	repo: ton-society/grants-and-bounties
	database: postgres://bountybot@localhost/bountybot
	track_interval: 5m
	digest_schedule: "0 10 * * MON"

# Admin Panel

The admin panel lists known chats, users and message templates. It is not
protected, so bind it to a local address. The JSON API allows to:

  - GET /api/chats, /api/users, /api/issues, /api/top: list records;
  - PUT /api/chats/{id}: change the title or subscription of a chat;
  - GET /api/texts/{kind}, PUT /api/texts/{kind}/{code}: read and edit
    message and button templates;
  - POST /api/track: track issues now.

Message templates are Markdown with {placeholder} fields, for example
{number}, {title}, {url}, {rewards} and {summary} in issue notifications.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/bountybot/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
