package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lexandro/csync2-hintd/pathnorm"
)

// ErrBusy is returned when the store stayed locked for every retry attempt.
var ErrBusy = errors.New("store busy")

// Default retry policy, matching the csync2 win32 hint daemon.
const (
	DefaultRetryDelay = time.Second
	DefaultMaxRetries = 1000
)

// Store opens transactions against the hint table.
type Store interface {
	// Begin acquires a connection and starts a transaction on it.
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is one open hint transaction. Commit and Rollback release its connection.
type Tx interface {
	InsertHint(ctx context.Context, filename string, recursive bool) error
	Commit() error
	Rollback() error
}

// Options configures a SQL-backed store.
type Options struct {
	Driver string
	DSN    string
	// RetryDelay is the pause between attempts while the store reports
	// lock contention.
	RetryDelay time.Duration
	// MaxRetries caps the number of retries after the first attempt.
	MaxRetries int
	// EncodeFilenames percent-escapes filenames the way csync2 does.
	EncodeFilenames bool
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db              *sql.DB
	dialect         dialect
	retryDelay      time.Duration
	maxRetries      int
	encodeFilenames bool
}

// Open opens the hint store described by options. The connection pool is
// lazy; no connection is made until the first Begin.
func Open(options Options) (*SQLStore, error) {
	if options.Driver == "" {
		options.Driver = DriverSQLite
	}
	d, err := lookupDialect(options.Driver)
	if err != nil {
		return nil, err
	}
	if options.DSN == "" {
		return nil, fmt.Errorf("store: dsn is empty")
	}

	db, err := sql.Open(d.driverName, options.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", options.Driver, err)
	}
	return newSQLStore(db, d, options), nil
}

func newSQLStore(db *sql.DB, d dialect, options Options) *SQLStore {
	retryDelay := options.RetryDelay
	if retryDelay < 0 {
		retryDelay = 0
	}
	maxRetries := options.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &SQLStore{
		db:              db,
		dialect:         d,
		retryDelay:      retryDelay,
		maxRetries:      maxRetries,
		encodeFilenames: options.EncodeFilenames,
	}
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates the hint table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	return s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.dialect.schema)
		return err
	})
}

// Begin acquires a dedicated connection and begins a transaction on it.
func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}

	var tx *sql.Tx
	err = s.retry(ctx, func() error {
		var beginErr error
		tx, beginErr = conn.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.insertHint)
	if err != nil {
		tx.Rollback()
		conn.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}

	return &sqlTx{store: s, conn: conn, tx: tx, insert: stmt}, nil
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// retry runs op until it succeeds, fails with a non-contention error, or
// the retry ceiling is reached.
func (s *SQLStore) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.maxRetries)),
		ctx,
	)
	err := backoff.Retry(func() error {
		err := op()
		if err == nil || s.dialect.isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil && s.dialect.isBusy(err) {
		return fmt.Errorf("%w after %d retries: %v", ErrBusy, s.maxRetries, err)
	}
	return err
}

type sqlTx struct {
	store  *SQLStore
	conn   *sql.Conn
	tx     *sql.Tx
	insert *sql.Stmt
	done   bool
}

func (t *sqlTx) InsertHint(ctx context.Context, filename string, recursive bool) error {
	if t.store.encodeFilenames {
		filename = pathnorm.Encode(filename)
	}
	flag := 0
	if recursive {
		flag = 1
	}
	return t.store.retry(ctx, func() error {
		return t.execInsert(ctx, filename, flag)
	})
}

// execInsert runs one insert attempt. With savepoints a failed attempt is
// rolled back on its own and the transaction stays usable.
func (t *sqlTx) execInsert(ctx context.Context, filename string, flag int) error {
	if !t.store.dialect.savepoints {
		_, err := t.insert.ExecContext(ctx, filename, flag)
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT hint_insert"); err != nil {
		return err
	}
	if _, err := t.insert.ExecContext(ctx, filename, flag); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT hint_insert"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back to savepoint: %w", rbErr))
		}
		return err
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT hint_insert")
	return err
}

func (t *sqlTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	defer t.release()
	// database/sql marks the transaction done before the driver commits,
	// so a failed commit cannot be retried on the same Tx.
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	defer t.release()
	return t.tx.Rollback()
}

func (t *sqlTx) release() {
	t.done = true
	t.insert.Close()
	t.conn.Close()
}
