package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite pool plus the advisory file lock that keeps the
// activity store single-writer across processes.
type DB struct {
	Pool *sql.DB
	lock *flock.Flock
}

// Queryer is satisfied by both *sql.DB and *sql.Tx so store operations can
// run standalone or inside a caller-owned transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (and locks) the activity store. ":memory:" skips the file
// lock; tests use it.
func Open(path string) (*DB, error) {
	var lk *flock.Flock
	dsn := "file::memory:?_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		lk = flock.New(path + ".lock")
		ok, err := lk.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock store: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("store %s is locked by another process", path)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	}

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, err
	}

	pool.SetMaxOpenConns(1) // sqlite wants one writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		if lk != nil {
			_ = lk.Unlock()
		}
		return nil, err
	}

	return &DB{Pool: pool, lock: lk}, nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	err := d.Pool.Close()
	if d.lock != nil {
		_ = d.lock.Unlock()
	}
	return err
}

// WithTx runs fn inside one short-lived transaction, rolling back on error.
// All multi-statement mutations go through here; no long-held locks.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
