package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/submissions-tracker/internal/common"
)

const retryBackoff = 25 * time.Millisecond

// transient reports whether err is a lock or serialization failure that a
// fresh transaction may not hit again.
func transient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database table is locked")
}

// classify maps a driver error onto the storage taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case common.CodeOf(err) != "":
		return err
	case transient(err), errors.Is(err, context.DeadlineExceeded):
		return common.StorageConflict(op+": transient storage conflict", err)
	default:
		return common.StorageUnavailable(op+": storage failure", err)
	}
}

// withRetry runs fn until it succeeds, fails with a non retryable error or
// attempts run out. Exhausted conflicts surface as
// STORAGE_UNAVAILABLE.
func (db *DB) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := db.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := retryBackoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !common.IsRetryable(err) {
			return err
		}
		lastErr = err
		db.logger.Warn("storage conflict, will retry",
			"op", op,
			"attempt", i+1,
			"max_attempts", attempts,
			"backoff", backoff.String(),
			"error", err,
		)
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return common.StorageUnavailable(op+": cancelled during retry", ctx.Err())
		}
	}
	db.logger.Error("storage operation failed after all retries", "op", op, "error", lastErr)
	return common.StorageUnavailable(op+": failed after retries", lastErr)
}
