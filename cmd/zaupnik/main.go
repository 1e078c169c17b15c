// Command zaupnik runs the vault access server and its operational commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

// levelRouter is a slog.Handler that routes INFO/WARN to one writer and ERROR+ to another.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to infoW, ERROR goes
// to os.Stderr. If logPath is non-empty, all levels are also written to that
// file, rotated by size. The returned function closes the file.
func setupLogger(logPath string, infoW io.Writer) func() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	cleanup := func() {}
	errW := io.Writer(os.Stderr)

	if logPath != "" {
		rotator := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		cleanup = func() { rotator.Close() }
		infoW = io.MultiWriter(infoW, rotator)
		errW = io.MultiWriter(errW, rotator)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(infoW, opts),
		stderr: slog.NewTextHandler(errW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup
}

type command struct {
	summary string
	run     func(c *cli, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"serve":            {"run the HTTP API server", (*cli).serve},
	"init":             {"create the schema and the admin account", (*cli).initialize},
	"useradd":          {"create a user", (*cli).userAdd},
	"vault-create":     {"create a vault owned by --as", (*cli).vaultCreate},
	"issue-invite":     {"invite a nominee to a vault", (*cli).issueInvite},
	"issue-transfer":   {"offer a vault to a new owner", (*cli).issueTransfer},
	"redeem-invite":    {"accept an invite token or link", (*cli).redeemInvite},
	"redeem-transfer":  {"take ownership with a transfer token or link", (*cli).redeemTransfer},
	"list-nominees":    {"list a vault's nominees", (*cli).listNominees},
	"list-transfers":   {"list transfer requests", (*cli).listTransfers},
	"activate-nominee": {"move an accepted nominee to active", (*cli).activateNominee},
	"revoke-nominee":   {"revoke a nominee", (*cli).revokeNominee},
	"cancel-transfer":  {"withdraw a pending transfer request", (*cli).cancelTransfer},
}

func usage(w io.Writer) {
	fmt.Fprint(w, "Usage: zaupnik <command> [flags]\n\nCommands:\n")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(w, "\nRun 'zaupnik <command> --help' for the command's flags.\n")
}

// run dispatches args to a command. Command output goes to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("no command given")
	}

	switch args[0] {
	case "-h", "--help", "help":
		usage(stdout)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command: %s", args[0])
	}

	c := &cli{stdout: stdout, stderr: stderr}
	return cmd.run(c, ctx, args[1:])
}

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
