package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Timestamps are stored as RFC3339Nano TEXT in UTC. Formatting is explicit
// on both sides so values round-trip identically regardless of driver
// time-handling quirks.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullToString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// isBusyError checks if an error is SQLITE_BUSY / SQLITE_LOCKED contention
// that is worth retrying.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked")
}

// isUniqueConstraintError checks if an error is a UNIQUE constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const busyRetryMaxElapsed = 5 * time.Second

func newBusyRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = busyRetryMaxElapsed
	return bo
}

// beginImmediate starts an IMMEDIATE transaction on a dedicated connection,
// retrying with bounded exponential backoff while the write lock is held by
// another writer. IMMEDIATE acquires a RESERVED lock up front, which
// serializes counter reads across concurrent writers.
//
// We use raw Exec instead of BeginTx because database/sql doesn't support
// transaction modes in BeginTx, and the driver's BeginTx always uses
// DEFERRED mode.
func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err // retryable, backoff will retry
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(newBusyRetryBackoff(), ctx))
}

// withTx executes a function within a database transaction. If the function
// returns an error, the transaction is rolled back; otherwise it is
// committed.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
