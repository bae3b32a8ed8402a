// Package ingest commits hint batches read from the line protocol, as
// written by "hintd stream" or any other producer, to a sink.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexandro/csync2-hintd/batch"
	"github.com/lexandro/csync2-hintd/metrics"
	"github.com/lexandro/csync2-hintd/protocol"
	"github.com/lexandro/csync2-hintd/sink"
)

// ErrProducerClosed is returned by Run when the input reaches EOF.
// A hint producer is expected to run forever, so this is an error.
var ErrProducerClosed = errors.New("hint producer terminated")

// Options configures an Ingester.
type Options struct {
	Sink sink.Sink
	// FoldCase lower-cases every path before it is hinted, for trees on
	// case-insensitive filesystems.
	FoldCase bool
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Result summarizes an ingest run.
type Result struct {
	Batches   int
	Hints     int
	Failed    int
	Discarded int // paths of an unterminated trailing batch
}

type Ingester struct {
	sink     sink.Sink
	foldCase bool
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(options Options) *Ingester {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		sink:     options.Sink,
		foldCase: options.FoldCase,
		metrics:  options.Metrics,
		logger:   logger,
	}
}

// Run reads batches from r until EOF, a fatal sink error or ctx is done.
// Store failures are logged per batch and do not stop the run.
func (in *Ingester) Run(ctx context.Context, r io.Reader) (Result, error) {
	var result Result
	reader := protocol.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		paths, err := reader.Next()
		switch {
		case errors.Is(err, io.EOF):
			in.logger.Error("hint producer terminated", "batches", result.Batches, "hints", result.Hints)
			return result, ErrProducerClosed
		case errors.Is(err, protocol.ErrUnterminated):
			result.Discarded = len(paths)
			in.logger.Error("hint producer terminated inside a batch, discarding it", "paths", len(paths))
			return result, ErrProducerClosed
		case err != nil:
			return result, fmt.Errorf("reading hint stream: %w", err)
		}

		committed, err := in.commit(ctx, paths)
		result.Batches++
		result.Hints += committed
		if err != nil {
			result.Failed++
			if sink.IsFatal(err) {
				return result, err
			}
		}
	}
}

func (in *Ingester) commit(ctx context.Context, paths []string) (int, error) {
	if in.foldCase {
		for i, p := range paths {
			paths[i] = strings.ToLower(p)
		}
	}

	start := time.Now()
	b := batch.Build(paths)
	if b.Empty() {
		return 0, nil
	}

	err := in.sink.Commit(ctx, b)
	committed := sink.Committed(b, err)
	in.metrics.ObserveFlush(len(paths), committed, sink.Kind(err), time.Since(start))
	return committed, err
}

// Hint commits paths as a single batch. Relative paths are resolved against
// the working directory.
func Hint(ctx context.Context, s sink.Sink, paths []string) (int, error) {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return 0, fmt.Errorf("resolving %s: %w", p, err)
		}
		resolved = append(resolved, abs)
	}

	b := batch.Build(resolved)
	if b.Empty() {
		return 0, nil
	}
	err := s.Commit(ctx, b)
	return sink.Committed(b, err), err
}
