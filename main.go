package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lexandro/csync2-hintd/config"
	"github.com/lexandro/csync2-hintd/store"
)

const usage = `usage: hintd <command> [flags] [args]

commands:
  store  [flags] <root>...   watch roots, commit batches to the hint store
  stream [flags] <root>...   watch roots, write "+ path" / "- COMMIT" to stdout
  ingest [flags]             read the stream protocol on stdin, commit to the store
  hint   [flags] <path>...   insert hints for the given paths once, then exit

run "hintd <command> -h" for the flags of a command
`

// excludePatterns is a repeatable CLI flag for custom ignore patterns.
type excludePatterns []string

func (e *excludePatterns) String() string { return strings.Join(*e, ", ") }
func (e *excludePatterns) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// cliFlags holds the flags shared by every command. Only flags that were set
// on the command line override the file and environment configuration.
type cliFlags struct {
	fs   *flag.FlagSet
	mode config.Mode

	configPath    string
	dotenvPath    string
	driver        string
	dsn           string
	logLevel      string
	logFile       string
	tick          time.Duration
	announceEvery int
	metricsListen string
	excludes      excludePatterns
	defaultExcl   bool
	mcp           bool
	foldCase      bool
}

func newCLIFlags(mode config.Mode) *cliFlags {
	c := &cliFlags{fs: flag.NewFlagSet("hintd "+string(mode), flag.ContinueOnError), mode: mode}
	fs := c.fs

	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.StringVar(&c.dotenvPath, "env-file", ".env", "Environment file with HINTD_* overrides (ignored if missing)")
	fs.StringVar(&c.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&c.logFile, "log-file", "", "Log file path (default: stderr)")
	fs.StringVar(&c.metricsListen, "metrics-listen", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9477)")

	if mode.UsesStore() {
		fs.StringVar(&c.driver, "driver", store.DriverSQLite, "Hint store driver: "+strings.Join(store.Drivers(), "|"))
		fs.StringVar(&c.dsn, "db", "", "Hint store DSN (default: /var/lib/csync2/<hostname>.db)")
	}
	if mode.Watches() {
		fs.DurationVar(&c.tick, "tick", time.Second, "Flush tick interval")
		fs.IntVar(&c.announceEvery, "announce-every", 600, "Ticks between liveness announcements")
		fs.Var(&c.excludes, "exclude", "Extra ignore pattern (repeatable)")
		fs.BoolVar(&c.defaultExcl, "default-excludes", false, "Skip editor swap files, SQLite side files and VCS directories")
	}
	if mode == config.ModeStore {
		fs.BoolVar(&c.mcp, "mcp", false, "Serve MCP control tools on stdio")
	}
	if mode == config.ModeIngest {
		fs.BoolVar(&c.foldCase, "fold-case", false, "Lower-case paths before hinting")
	}
	return c
}

// resolve parses args and layers defaults, the YAML file, the environment and
// the flags that were set. Positional arguments are returned as-is.
func (c *cliFlags) resolve(args []string, lookup func(string) (string, bool)) (config.Config, []string, error) {
	if err := c.fs.Parse(args); err != nil {
		return config.Config{}, nil, err
	}

	if lookup == nil {
		if err := config.LoadDotEnv(c.dotenvPath); err != nil {
			return config.Config{}, nil, err
		}
		lookup = os.LookupEnv
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		return cfg, nil, err
	}

	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Store.Driver = c.driver
		case "db":
			cfg.Store.DSN = c.dsn
		case "log-level":
			cfg.Log.Level = c.logLevel
		case "log-file":
			cfg.Log.File = c.logFile
		case "tick":
			cfg.Flush.TickInterval = c.tick
		case "announce-every":
			cfg.Flush.AnnounceEvery = c.announceEvery
		case "metrics-listen":
			cfg.Metrics.Listen = c.metricsListen
		case "exclude":
			cfg.Watch.Exclude = append(cfg.Watch.Exclude, c.excludes...)
		case "default-excludes":
			cfg.Watch.DefaultExcludes = c.defaultExcl
		}
	})

	positional := c.fs.Args()
	if c.mode.Watches() && len(positional) > 0 {
		cfg.Watch.Roots = nil
		for _, root := range positional {
			abs, err := filepath.Abs(root)
			if err != nil {
				return cfg, nil, fmt.Errorf("resolving root %s: %w", root, err)
			}
			cfg.Watch.Roots = append(cfg.Watch.Roots, abs)
		}
	}

	if err := cfg.Validate(c.mode); err != nil {
		return cfg, nil, err
	}
	return cfg, positional, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	mode := config.Mode(os.Args[1])
	switch mode {
	case config.ModeStore, config.ModeStream, config.ModeIngest, config.ModeHint:
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	flags := newCLIFlags(mode)
	cfg, args, err := flags.resolve(os.Args[2:], nil)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (always to file or stderr, never to stdout - stdout carries
	// the hint stream or MCP stdio)
	logger := setupLogger(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case config.ModeStore, config.ModeStream:
		err = runDaemon(ctx, cfg, mode, flags.mcp, os.Stdout, logger)
	case config.ModeIngest:
		err = runIngest(ctx, cfg, flags.foldCase, os.Stdin, logger)
	case config.ModeHint:
		err = runHint(ctx, cfg, args, logger)
	}
	if err != nil {
		logger.Error("hintd exiting", "command", string(mode), "error", err)
		os.Exit(1)
	}
}

// setupLogger creates an slog.Logger writing to stderr or a file.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
			writer = os.Stderr
		} else {
			writer = f
		}
	} else {
		writer = os.Stderr
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
