// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.astrophena.name/bountybot/cmd/bountybot/internal/admin"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/bot"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/db"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/format"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/github"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/issue"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/notify"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/society"
	"go.astrophena.name/bountybot/cmd/bountybot/internal/telegram"
	"go.astrophena.name/bountybot/internal/cli"
	"go.astrophena.name/bountybot/internal/logger"
	"go.astrophena.name/bountybot/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() { cli.Main(new(engine)) }

var commands = []string{"run", "track", "digest", "top", "admin"}

// leaderboardMaxAge is how long a stored leaderboard is served before /top
// fetches it again. The scheduler refreshes it hourly.
const leaderboardMaxAge = 24 * time.Hour

type engine struct {
	// flags
	configPath string
	flags      config
	dry        bool
	sync       bool

	// test hooks
	httpc       *http.Client
	now         func() time.Time
	pollTimeout time.Duration
	ready       func(addr string)

	// initialized by init, db can be set before
	cfg      config
	level    *slog.LevelVar
	logs     logger.Streamer
	db       db.Store
	cache    store.Store
	sender   notify.Sender
	tracker  *notify.Tracker
	digest   *notify.Digest
	letters  *notify.Newsletters
	society  *society.Cache
	renderer *format.Renderer
	bot      *bot.Bot
}

func (e *engine) Flags(fs *flag.FlagSet) {
	fs.StringVar(&e.configPath, "config", "", "Path to the YAML config file.")
	fs.StringVar(&e.flags.Repo, "repo", "", "GitHub repository to watch, in the owner/name form.")
	fs.StringVar(&e.flags.Database, "db", "", "Database `URL`: SQLite file path, PostgreSQL URL or \"mem:\".")
	fs.StringVar(&e.flags.Cache, "cache", "", "Cache `URL`: same as -db, or a path to a JSON file.")
	fs.StringVar(&e.flags.AdminAddr, "admin-addr", "", "Listen on `host:port` for the admin panel.")
	fs.StringVar(&e.flags.LogFile, "log-file", "", "Also write logs to `file`.")
	fs.BoolVar(&e.dry, "dry", false, "Enable dry-run mode: log messages instead of sending them and don't save the snapshot.")
	fs.BoolVar(&e.sync, "sync", false, "With track command, update the snapshot without sending notifications.")
}

func (e *engine) Run(ctx context.Context, env *cli.Env) error {
	command, err := env.Command(commands...)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(e.configPath, env.Getenv, e.flags)
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.level = new(slog.LevelVar)
	// Enable debug logging in dry-run mode.
	if e.dry {
		e.level.Set(slog.LevelDebug)
	}
	e.logs = logger.NewStreamer(1000)
	l, closeLog := logger.New(logger.Options{
		Level:    e.level,
		Stderr:   env.Stderr,
		File:     e.cfg.LogFile,
		Streamer: e.logs,
	})
	defer closeLog()
	ctx = logger.Put(ctx, l)

	needsTelegram := command == "run" || command == "digest" || (command == "track" && !e.sync)
	if needsTelegram && !e.dry && e.cfg.TelegramToken == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN is required", cli.ErrInvalidArgs)
	}

	if err := e.init(ctx); err != nil {
		return err
	}
	defer e.close()

	switch command {
	case "run":
		return e.run(ctx)
	case "track":
		return e.track(ctx, env.Stdout)
	case "digest":
		return e.sendDigest(ctx, env.Stdout)
	case "top":
		return e.top(ctx, env.Stdout)
	case "admin":
		return admin.Run(ctx, e.adminConfig())
	}
	return nil
}

func (e *engine) init(ctx context.Context) error {
	if e.now == nil {
		e.now = time.Now
	}
	if e.db == nil {
		database, err := db.Open(ctx, e.cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		e.db = database
	}
	if err := e.db.Seed(ctx, format.Defaults); err != nil {
		e.close()
		return fmt.Errorf("seeding texts: %w", err)
	}

	var err error
	e.cache, err = store.Open(ctx, e.cfg.Cache, store.Options{MaxAge: leaderboardMaxAge, Now: e.now})
	if err != nil {
		e.close()
		return fmt.Errorf("opening cache: %w", err)
	}

	gh, err := github.New(github.Config{
		Repo:       e.cfg.Repo,
		Token:      e.cfg.GitHubToken,
		HTTPClient: e.httpc,
	})
	if err != nil {
		e.close()
		return fmt.Errorf("%w: %v", cli.ErrInvalidArgs, err)
	}

	tg := telegram.New(telegram.Config{
		Token:      e.cfg.TelegramToken,
		HTTPClient: e.httpc,
	})

	var (
		snapshot notify.Store  = e.db
		sender   notify.Sender = tg
	)
	if e.dry {
		snapshot = dryStore{e.db}
		sender = dryRunSender{}
	}
	e.sender = sender

	e.renderer = &format.Renderer{Texts: e.db, CreateBountyURL: e.cfg.CreateBountyURL}
	deps := notify.Deps{
		Source:   gh,
		Store:    snapshot,
		Sender:   sender,
		Renderer: e.renderer,
		Fanout:   notify.NewFanout(sender),
		Now:      e.now,
	}
	e.tracker = notify.NewTracker(deps)
	e.digest = notify.NewDigest(deps)
	e.letters = notify.NewNewsletters(deps, e.db)
	e.society = &society.Cache{
		Store:  e.cache,
		Client: &society.Client{HTTPClient: e.httpc},
	}
	e.bot = &bot.Bot{
		Client:      tg,
		Store:       e.db,
		Renderer:    e.renderer,
		Leaderboard: e.society,
		Digest:      e.digest,
		Now:         e.now,
		PollTimeout: e.pollTimeout,
	}
	return nil
}

func (e *engine) close() {
	if e.cache != nil {
		e.cache.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func (e *engine) adminConfig() admin.Config {
	return admin.Config{
		Addr:        e.cfg.AdminAddr,
		Store:       e.db,
		Tracker:     e.tracker,
		Digest:      e.digest,
		Leaderboard: e.society,
		Newsletters: e.letters,
		Logs:        e.logs,
		Now:         e.now,
		Ready:       e.ready,
	}
}

// run runs the bot until ctx is canceled.
func (e *engine) run(ctx context.Context) error {
	sched, err := e.schedule(ctx)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	g, ctx := errgroup.WithContext(ctx)
	// Replies to updates would bypass the dry-run sender.
	if e.dry {
		logger.Get(ctx).Info("dry run, not polling updates")
	} else {
		g.Go(func() error { return e.bot.Run(ctx) })
	}
	g.Go(func() error { return admin.Run(ctx, e.adminConfig()) })
	return g.Wait()
}

func (e *engine) track(ctx context.Context, w io.Writer) error {
	run := e.tracker.Run
	if e.sync {
		run = e.tracker.Sync
	}
	sum, err := run(ctx)
	if err != nil {
		return err
	}
	return printJSON(w, sum)
}

func (e *engine) sendDigest(ctx context.Context, w io.Writer) error {
	rep, err := e.digest.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(w, rep)
}

func (e *engine) top(ctx context.Context, w io.Writer) error {
	users, err := e.society.Refresh(ctx)
	if err != nil {
		return err
	}
	for i, u := range users {
		fmt.Fprintf(w, "%d. %s (%d awards) %s\n", i+1, u.Name, u.AwardsCount, u.ProfileURL())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// dryRunSender logs messages instead of sending them.
type dryRunSender struct{}

func (dryRunSender) SendMessage(ctx context.Context, msg telegram.Message) error {
	logger.Get(ctx).Info("would send message", "chat_id", msg.ChatID, "text", msg.Text)
	return nil
}

// dryStore doesn't save the snapshot.
type dryStore struct {
	notify.Store
}

func (dryStore) UpsertIssues(ctx context.Context, issues []issue.Issue) error {
	logger.Get(ctx).Debug("would save snapshot", "issues", len(issues))
	return nil
}
