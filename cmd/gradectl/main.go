// Command gradectl is the operator tool of the gradebook service. It shares
// the configuration and application layer of the API server, so writes made
// here go through the same validation and cache invalidation.
//
// Usage:
//
//	gradectl [-db URL] [-v] <command> [arguments]
//
// Commands:
//
//	import <file.yaml>          load students and scores from a YAML fixture
//	students [-skip N] [-limit N]
//	search <name>
//	average <student-id>
//	top <subject>
//	department <name>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/gradebook-hub/gradebook/config"
	"github.com/gradebook-hub/gradebook/internal/app"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/pkg/logger"
)

const usage = `Usage: gradectl [-db URL] [-v] <command> [arguments]

Commands:
  import <file.yaml>             load students and scores from a YAML fixture
  students [-skip N] [-limit N]  list students in id order
  search <name>                  find students by name substring
  average <student-id>           average score of one student
  top <subject>                  top scorer of a subject
  department <name>              average score of a department
  migrate status                 list schema migrations and whether they ran
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gradectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	dbURL := fs.String("db", "", "database URL (overrides DATABASE_URL)")
	verbose := fs.Bool("v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		printError(stderr, fmt.Errorf("unknown command %q", fs.Arg(0)))
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		printError(stderr, err)
		return 1
	}
	if *dbURL != "" {
		cfg.Database.URL = *dbURL
	}
	if err := cfg.Validate(); err != nil {
		printError(stderr, err)
		return 1
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := logger.New(logger.Options{Output: stderr, Level: level, Format: logger.FormatText})

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		printError(stderr, err)
		return 1
	}
	defer func() { _ = a.Close() }()

	if err := cmd(ctx, a, fs.Args()[1:], stdout); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

// printError reports err on stderr. Caller mistakes (unknown ids, invalid
// input) are shown in red with their client-facing message.
func printError(w io.Writer, err error) {
	if shared.IsNotFound(err) || shared.IsValidation(err) {
		msg := shared.MessageOf(err)
		if msg == "" {
			msg = err.Error()
		}
		color.New(color.FgRed).Fprintln(w, "error: "+msg)
		return
	}
	fmt.Fprintln(w, "error:", err)
}
