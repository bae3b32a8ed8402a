package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lexandro/csync2-hintd/batch"
	"github.com/lexandro/csync2-hintd/store"
)

// InsertErrorPolicy decides what a failed insert does to its batch.
type InsertErrorPolicy string

const (
	// InsertContinue logs the failure, keeps inserting and still commits.
	InsertContinue InsertErrorPolicy = "continue"
	// InsertAbort rolls the whole batch back on the first failed insert.
	InsertAbort InsertErrorPolicy = "abort"
)

// ParseInsertErrorPolicy validates a policy name. Empty means InsertContinue.
func ParseInsertErrorPolicy(s string) (InsertErrorPolicy, error) {
	switch InsertErrorPolicy(s) {
	case "", InsertContinue:
		return InsertContinue, nil
	case InsertAbort:
		return InsertAbort, nil
	}
	return "", fmt.Errorf("unknown insert error policy %q (must be %q or %q)", s, InsertContinue, InsertAbort)
}

// StoreSink commits each batch as one transaction on the hint store.
type StoreSink struct {
	store    store.Store
	onInsert InsertErrorPolicy
	logger   *slog.Logger
}

// NewStoreSink creates a sink writing to s.
func NewStoreSink(s store.Store, onInsert InsertErrorPolicy, logger *slog.Logger) *StoreSink {
	if onInsert == "" {
		onInsert = InsertContinue
	}
	return &StoreSink{store: s, onInsert: onInsert, logger: logger}
}

// Commit inserts one non-recursive hint row per path inside a single
// transaction. With InsertContinue a batch with failed inserts still
// commits, and the returned error wraps ErrStoreWriteFailed.
func (s *StoreSink) Commit(ctx context.Context, b *batch.Batch) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		s.logger.Error("hint store unavailable, dropping batch", "batch", b.ID(), "paths", b.Len(), "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	var failed int
	var firstErr error
	for _, path := range b.Paths() {
		if err := tx.InsertHint(ctx, path, false); err != nil {
			s.logger.Error("hint insert failed", "batch", b.ID(), "path", path, "error", err)
			if s.onInsert == InsertAbort {
				if rbErr := tx.Rollback(); rbErr != nil {
					s.logger.Warn("rollback failed", "batch", b.ID(), "error", rbErr)
				}
				s.logger.Warn("hint batch rolled back", "batch", b.ID(), "paths", b.Len())
				return fmt.Errorf("%w: %w: %s: %w", ErrStoreRolledBack, ErrStoreWriteFailed, path, err)
			}
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Debug("added hint", "batch", b.ID(), "path", path)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("hint commit failed", "batch", b.ID(), "error", err)
		return fmt.Errorf("%w: %w", ErrStoreCommitFailed, err)
	}

	s.logger.Info("changes to hint database committed", "batch", b.ID(), "hints", b.Len()-failed, "failed", failed)
	if failed > 0 {
		return &partialError{
			landed: b.Len() - failed,
			err:    fmt.Errorf("%w: %d of %d inserts: %w", ErrStoreWriteFailed, failed, b.Len(), firstErr),
		}
	}
	return nil
}

// Committed returns how many rows of b landed given the error Commit returned.
func Committed(b *batch.Batch, err error) int {
	if err == nil {
		return b.Len()
	}
	var partial *partialError
	if errors.As(err, &partial) {
		return partial.landed
	}
	return 0
}

type partialError struct {
	landed int
	err    error
}

func (e *partialError) Error() string { return e.err.Error() }
func (e *partialError) Unwrap() error { return e.err }
