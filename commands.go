package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lexandro/csync2-hintd/config"
	"github.com/lexandro/csync2-hintd/ingest"
	"github.com/lexandro/csync2-hintd/metrics"
	"github.com/lexandro/csync2-hintd/sink"
)

// runIngest commits batches read from in until the producer goes away.
func runIngest(ctx context.Context, cfg config.Config, foldCase bool, in io.Reader, logger *slog.Logger) error {
	hintSink, closeStore, err := openStoreSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, m, logger); err != nil {
				logger.Warn("metrics listener failed", "addr", cfg.Metrics.Listen, "error", err)
			}
		}()
	}

	ingester := ingest.New(ingest.Options{
		Sink:     hintSink,
		FoldCase: foldCase,
		Metrics:  m,
		Logger:   logger,
	})

	result, err := ingester.Run(ctx, in)
	logger.Info("ingest finished",
		"batches", result.Batches,
		"hints", result.Hints,
		"failed", result.Failed,
		"discarded", result.Discarded,
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runHint commits paths as one batch. Like csync2 -h, a path that cannot be
// recorded makes the command fail.
func runHint(ctx context.Context, cfg config.Config, paths []string, logger *slog.Logger) error {
	if len(paths) == 0 {
		return fmt.Errorf("hint: no paths given")
	}

	hintSink, closeStore, err := openStoreSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := ingest.Hint(ctx, hintSink, paths)
	if err != nil {
		return fmt.Errorf("hint: %d of %d recorded: %w", n, len(paths), err)
	}
	logger.Info("hints recorded", "hints", n)
	return nil
}

func openStoreSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (sink.Sink, func(), error) {
	hintStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	policy, err := sink.ParseInsertErrorPolicy(cfg.Store.OnInsertError)
	if err != nil {
		hintStore.Close()
		return nil, nil, err
	}
	return sink.NewStoreSink(hintStore, policy, logger), func() { hintStore.Close() }, nil
}
