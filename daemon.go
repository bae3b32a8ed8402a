package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexandro/csync2-hintd/config"
	"github.com/lexandro/csync2-hintd/ignore"
	"github.com/lexandro/csync2-hintd/metrics"
	"github.com/lexandro/csync2-hintd/queue"
	"github.com/lexandro/csync2-hintd/scheduler"
	"github.com/lexandro/csync2-hintd/server"
	"github.com/lexandro/csync2-hintd/sink"
	"github.com/lexandro/csync2-hintd/store"
	"github.com/lexandro/csync2-hintd/tools"
	"github.com/lexandro/csync2-hintd/watcher"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// finalFlushTimeout bounds the flush of pending events on shutdown.
const finalFlushTimeout = 10 * time.Second

// runDaemon watches the configured roots and flushes batches to the hint
// store (store mode) or to stdout (stream mode) until ctx is done or the
// stream breaks.
func runDaemon(ctx context.Context, cfg config.Config, mode config.Mode, serveMCP bool, stdout io.Writer, logger *slog.Logger) error {
	logger.Info("starting hintd",
		"mode", string(mode),
		"roots", cfg.Watch.Roots,
		"tickInterval", cfg.Flush.TickInterval,
		"announceEvery", cfg.Flush.AnnounceEvery,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()

	var hintSink sink.Sink
	var excludePaths []string
	if mode == config.ModeStore {
		storeSink, closeStore, err := openStoreSink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		hintSink = storeSink
		excludePaths = storeFiles(cfg.Store)
	} else {
		hintSink = sink.NewStreamSink(stdout, logger)
	}

	// Create ignore matcher
	ignoreMatcher := ignore.NewMatcher(ignore.MatcherOptions{
		Roots:          cfg.Watch.Roots,
		CustomPatterns: cfg.Watch.Exclude,
		IgnoreFileName: cfg.Watch.IgnoreFile,
		ExcludePaths:   excludePaths,
		UseDefaults:    cfg.Watch.DefaultExcludes,
	})

	// Start file watcher
	fileWatcher, err := watcher.NewWatcher(watcher.Options{
		Roots:         cfg.Watch.Roots,
		IgnoreChecker: ignoreMatcher,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer fileWatcher.Close()
	go fileWatcher.Start()

	hintQueue := queue.New()
	go handleWatcherEvents(ctx, fileWatcher.Events(), hintQueue, ignoreMatcher, logger)

	flushScheduler := scheduler.New(scheduler.Options{
		Queue:            hintQueue,
		Sink:             hintSink,
		TickInterval:     cfg.Flush.TickInterval,
		AnnounceEvery:    cfg.Flush.AnnounceEvery,
		RequeueOnFailure: cfg.Flush.RequeueOnFailure,
		Roots:            cfg.Watch.Roots,
		Metrics:          m,
		Logger:           logger,
	})

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, m, logger); err != nil {
				logger.Warn("metrics listener failed", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
	}

	if serveMCP {
		mcpServer := server.Setup(
			&tools.StatusHandler{Scheduler: flushScheduler, Roots: cfg.Watch.Roots, Driver: cfg.Store.Driver, Logger: logger},
			&tools.FlushHandler{DoFlush: flushScheduler.Flush, Logger: logger},
			&tools.HintHandler{Enqueue: hintQueue.Enqueue, DoFlush: flushScheduler.Flush, Logger: logger},
		)
		go func() {
			logger.Info("MCP server starting on stdio")
			if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
				logger.Error("MCP server error", "error", err)
			}
		}()
	}

	runErr := flushScheduler.Run(ctx)
	if runErr != nil {
		return runErr
	}

	// Pending events would otherwise be lost on a clean shutdown.
	if hintQueue.Len() > 0 {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), finalFlushTimeout)
		defer cancelFlush()
		if n, err := flushScheduler.Flush(flushCtx); err != nil {
			logger.Warn("final flush failed", "hints", n, "error", err)
		} else {
			logger.Info("final flush complete", "hints", n)
		}
	}
	logger.Info("hintd stopped", "stats", tools.FormatStats(flushScheduler.Stats(), time.Now()))
	return nil
}

// handleWatcherEvents feeds watcher events into the queue. A change to a
// root's ignore file reloads the rules before it is itself queued.
func handleWatcherEvents(
	ctx context.Context,
	events <-chan watcher.RawEvent,
	hintQueue *queue.Queue,
	ignoreMatcher *ignore.Matcher,
	logger *slog.Logger,
) {
	forwarded := make(chan watcher.RawEvent)
	go func() {
		defer close(forwarded)
		for event := range events {
			if ignoreMatcher.IsIgnoreFile(event.NativePath) {
				ignoreMatcher.Reload()
				logger.Info("reloaded ignore rules", "trigger", event.NativePath)
			}
			select {
			case forwarded <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	hintQueue.Consume(ctx, forwarded)
}

// openStore opens the hint store and creates the hint table if needed.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.SQLStore, error) {
	hintStore, err := store.Open(store.Options{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		RetryDelay:      cfg.Store.EffectiveRetryDelay(),
		MaxRetries:      cfg.Store.MaxRetries,
		EncodeFilenames: cfg.Store.EncodeFilenames,
	})
	if err != nil {
		return nil, err
	}
	if err := hintStore.EnsureSchema(ctx); err != nil {
		hintStore.Close()
		return nil, fmt.Errorf("preparing hint table: %w", err)
	}
	logger.Info("hint store opened", "driver", cfg.Store.Driver, "dsn", redactDSN(cfg.Store.DSN))
	return hintStore, nil
}

// storeFiles returns the files a SQLite store writes, so that committing a
// batch under a watched root does not produce new hints.
func storeFiles(s config.StoreConfig) []string {
	if s.Driver != store.DriverSQLite {
		return nil
	}
	path := strings.TrimPrefix(s.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	return []string{abs, abs + "-journal", abs + "-wal", abs + "-shm"}
}

// redactDSN hides a password in URL or user:password@ style DSNs.
func redactDSN(dsn string) string {
	at := strings.LastIndexByte(dsn, '@')
	if at < 0 {
		return dsn
	}
	userinfo := dsn[:at]
	scheme := ""
	if i := strings.Index(userinfo, "://"); i >= 0 {
		scheme, userinfo = userinfo[:i+3], userinfo[i+3:]
	}
	if colon := strings.IndexByte(userinfo, ':'); colon >= 0 {
		userinfo = userinfo[:colon] + ":xxxxx"
	}
	return scheme + userinfo + dsn[at:]
}
