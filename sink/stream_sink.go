package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lexandro/csync2-hintd/batch"
	"github.com/lexandro/csync2-hintd/protocol"
)

// StreamSink writes each batch to an output stream using the hint protocol.
type StreamSink struct {
	writer *protocol.Writer
	logger *slog.Logger
}

// NewStreamSink creates a sink writing to w.
func NewStreamSink(w io.Writer, logger *slog.Logger) *StreamSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamSink{writer: protocol.NewWriter(w), logger: logger}
}

// Commit writes the batch followed by the commit marker. Paths that cannot
// be framed on one line are skipped with a warning. Write failures wrap
// ErrStreamWriteFailed and are fatal.
func (s *StreamSink) Commit(ctx context.Context, b *batch.Batch) error {
	paths := b.Paths()
	framed := paths[:0]
	for _, p := range paths {
		if !protocol.Frameable(p) {
			s.logger.Warn("skipping path with a line break in its name", "batch", b.ID(), "path", p)
			continue
		}
		framed = append(framed, p)
	}
	if len(framed) == 0 {
		return nil
	}

	if err := s.writer.WriteBatch(framed); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamWriteFailed, err)
	}
	return nil
}
