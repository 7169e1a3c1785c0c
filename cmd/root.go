// Package cmd wires up the CLI flags and dispatches to the core
// builder.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"fahstat/config"
	"fahstat/internal/core"
	"fahstat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X fahstat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// promptPassword reads the daemon password for --password-prompt.
var promptPassword util.Prompter = util.TerminalPrompter //nolint:gochecknoglobals

// stdout receives records and --dry-run output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Execute parses args and runs fahstat.
//
// Settings are layered: defaults, then the TOML file named by --config
// or FAHSTAT_CONFIG, then FAHSTAT_* environment variables, then flags.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()

	path, err := configPath(args)
	if err != nil {
		return err
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("fahstat", flag.ContinueOnError)
	fs.String("config", path, "TOML config file (env FAHSTAT_CONFIG)")

	// ── daemon ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Password, "password", cfg.Password, "Daemon command password")
	fs.BoolVar(&cfg.PasswordPrompt, "password-prompt", false, "Prompt for the daemon password")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.StringArrayVar(&cfg.InitCommands, "init", cfg.InitCommands, "Commands sent on every connect (repeatable)")

	// ── timing ───────────────────────────────────────────────────
	fs.DurationVar(&cfg.RetryRate, "retry-rate", cfg.RetryRate, "Minimum delay between connect attempts")
	fs.DurationVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "Back off exponentially up to this delay (0 = constant)")
	fs.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "Abandon a connect attempt after this long")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "Reconnect when no message arrives for this long (0 = never)")
	fs.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Poll interval")

	// ── subscription ─────────────────────────────────────────────
	fs.IntVar(&cfg.UpdateID, "update-id", cfg.UpdateID, "Subscription slot for queue-info")
	fs.DurationVar(&cfg.UpdateInterval, "update-interval", cfg.UpdateInterval, "Queue-info push interval")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Dump, "dump", cfg.Dump, "Record format: json or pyon")
	fs.BoolVar(&cfg.Once, "once", cfg.Once, "Exit after the first queue-info message")
	var verbosity int
	var quiet bool
	fs.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate and print the resolved settings")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "fahstat %s\n", version)
		return nil
	}
	cfg.Verbose += verbosity
	if quiet {
		cfg.Verbose = int(util.LogQuiet)
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if err := cfg.ResolveTunnel(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		printPlan(cfg)
		return nil
	}

	if cfg.PasswordPrompt {
		pw, err := promptPassword("Daemon password: ")
		if err != nil {
			return fmt.Errorf("password prompt: %w", err)
		}
		cfg.Password = string(pw)
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger, stdout)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds --config in args ahead of the full parse, so the
// file can supply the defaults every other flag overrides.
func configPath(args []string) (string, error) {
	pre := flag.NewFlagSet("fahstat", flag.ContinueOnError)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.SetOutput(io.Discard)
	pre.Usage = func() {}

	path := pre.String("config", os.Getenv(config.EnvConfigPath), "")
	pre.BoolP("help", "h", false, "")
	if err := pre.Parse(args); err != nil && err != flag.ErrHelp {
		return "", err
	}
	return *path, nil
}

// parsePositional accepts an optional daemon target: host, host:port
// or [v6addr]:port.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return nil
	case 1:
		host, port, err := util.SplitTarget(remaining[0], cfg.Port)
		if err != nil {
			return err
		}
		cfg.Host = host
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments: %s", strings.Join(remaining, " "))
	}
}

// printPlan writes the resolved settings for --dry-run.  The password
// itself is never printed.
func printPlan(cfg *config.Config) {
	fmt.Fprintf(stdout, "daemon:   %s\n", cfg.Addr())
	if cfg.TunnelEnabled {
		fmt.Fprintf(stdout, "tunnel:   %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
	auth := "none"
	switch {
	case cfg.PasswordPrompt:
		auth = "prompt"
	case cfg.Password != "":
		auth = "password"
	}
	fmt.Fprintf(stdout, "auth:     %s\n", auth)
	fmt.Fprintf(stdout, "init:     %s\n", strings.Join(cfg.InitCommands, "; "))
	fmt.Fprintf(stdout, "update:   %s\n", cfg.UpdateCommand())
	fmt.Fprintf(stdout, "retry:    %s (max %s)\n", cfg.RetryRate, cfg.RetryMax)
	fmt.Fprintf(stdout, "idle:     %s\n", cfg.IdleTimeout)
	fmt.Fprintf(stdout, "dump:     %s\n", cfg.Dump)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `fahstat – work-queue daemon status client v%s

Connects to the daemon's command port, subscribes to queue-info
updates and writes every message it receives to stdout.

Usage:
  fahstat [options] [host[:port]]             Monitor (default localhost:%d)
  fahstat -T user@gateway [options] host      Monitor through an SSH tunnel

Options:
`, version, config.DefaultPort)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  fahstat                                     Local daemon, JSON records
  fahstat --once 10.0.0.5                     One snapshot, then exit
  fahstat --password-prompt --dump pyon host  Authenticate, raw PyON
  fahstat -T admin@bastion folder-07          SSH tunnel
`)
}
