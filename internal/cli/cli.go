// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package cli runs command-line applications: it parses flags, prints usage
// built from the application's doc comment and reports errors.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"go.astrophena.name/bountybot/internal/version"
)

// ErrInvalidArgs indicates that the command-line arguments or the
// environment are invalid. Wrap it to explain what is wrong:
//
//	return fmt.Errorf("%w: unknown command %q", cli.ErrInvalidArgs, cmd)
var ErrInvalidArgs = errors.New("invalid arguments")

// ErrExitVersion is returned by [Run] after printing the version.
var ErrExitVersion = silent(errors.New("version printed"))

// App is a command-line application.
type App interface {
	Run(context.Context, *Env) error
}

// HasFlags is an [App] that defines flags.
type HasFlags interface {
	App
	Flags(*flag.FlagSet)
}

// Env is the environment of a running application.
type Env struct {
	// Args are the arguments left after flags are parsed.
	Args   []string
	Getenv func(string) string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// OSEnv returns the environment of the current process.
func OSEnv() *Env {
	return &Env{
		Args:   os.Args[1:],
		Getenv: os.Getenv,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Command returns the only argument, checking that it is one of known.
func (e *Env) Command(known ...string) (string, error) {
	if len(e.Args) != 1 {
		return "", fmt.Errorf("%w: want exactly one command of %s, see -help", ErrInvalidArgs, strings.Join(known, ", "))
	}
	cmd := e.Args[0]
	if !slices.Contains(known, cmd) {
		return "", fmt.Errorf("%w: no such command %q", ErrInvalidArgs, cmd)
	}
	return cmd, nil
}

// Main runs app in the process environment until it returns or the process
// receives SIGINT or SIGTERM, and exits with status 1 on error.
func Main(app App) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Run(ctx, app, OSEnv())
	stop()
	if err == nil {
		return
	}
	var se *silentError
	if !errors.As(err, &se) && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

// Run parses flags from env.Args and runs app with the remaining arguments.
func Run(ctx context.Context, app App, env *Env) error {
	fs := flag.NewFlagSet(version.CmdName(), flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	if fa, ok := app.(HasFlags); ok {
		fa.Flags(fs)
	}
	var showVersion bool
	if fs.Lookup("version") == nil {
		fs.BoolVar(&showVersion, "version", false, "Print version and exit.")
	}
	fs.Usage = func() {
		if doc := docComment(docSrc); doc != "" {
			fmt.Fprintln(env.Stderr, doc)
		}
		fmt.Fprint(env.Stderr, "Flags:\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(env.Args); err != nil {
		// The flag package has already printed the error.
		return silent(err)
	}
	if showVersion {
		fmt.Fprint(env.Stderr, version.Version())
		return ErrExitVersion
	}
	env.Args = fs.Args()
	return app.Run(ctx, env)
}

// silentError is not printed by Main.
type silentError struct{ err error }

func silent(err error) error { return &silentError{err} }

func (e *silentError) Error() string { return e.err.Error() }
func (e *silentError) Unwrap() error { return e.err }

var docSrc []byte

// SetDocComment sets the source of the file holding the application's
// documentation, which Run prints as part of -help. The documentation is the
// text of the first /* ... */ block:
//
//	//go:embed doc.go
//	var doc []byte
//
//	func init() { cli.SetDocComment(doc) }
func SetDocComment(src []byte) { docSrc = src }

func docComment(src []byte) string {
	_, rest, ok := strings.Cut(string(src), "\n/*\n")
	if !ok {
		return ""
	}
	doc, _, _ := strings.Cut(rest, "\n*/")
	return doc + "\n"
}
