package sink

import (
	"context"
	"errors"

	"github.com/lexandro/csync2-hintd/batch"
)

// Error kinds reported by Commit. Match with errors.Is.
var (
	ErrStoreUnavailable  = errors.New("hint store unavailable")
	ErrStoreWriteFailed  = errors.New("hint insert failed")
	ErrStoreCommitFailed = errors.New("hint commit failed")
	// ErrStoreRolledBack accompanies ErrStoreWriteFailed when the whole
	// batch was rolled back instead of committed.
	ErrStoreRolledBack = errors.New("hint batch rolled back")
	ErrStreamWriteFailed = errors.New("hint stream write failed")
)

// Sink receives one deduplicated batch per flush. It is never called with
// an empty batch.
type Sink interface {
	Commit(ctx context.Context, b *batch.Batch) error
}

// IsFatal reports whether err should terminate the process. Only stream
// failures are fatal; store failures are retried on the next cycle.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStreamWriteFailed)
}

// Lost reports whether the batch did not land in the store at all, so its
// paths are candidates for requeueing.
func Lost(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreCommitFailed) ||
		errors.Is(err, ErrStoreRolledBack)
}

// Kind maps a Commit error to a short label for metrics and logs.
// It returns "" for a nil error.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrStoreRolledBack):
		return "store_rolled_back"
	case errors.Is(err, ErrStoreWriteFailed):
		return "store_write_failed"
	case errors.Is(err, ErrStoreCommitFailed):
		return "store_commit_failed"
	case errors.Is(err, ErrStreamWriteFailed):
		return "stream_write_failed"
	default:
		return "other"
	}
}
