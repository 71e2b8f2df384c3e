package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	maxWriteAttempts = 3
	baseRetryDelay   = 50 * time.Millisecond
)

// isConflict reports whether err is a SQLite concurrency error
// (SQLITE_BUSY or "database is locked") worth retrying.
func isConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withRetry runs fn, retrying conflicts with exponential backoff.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < maxWriteAttempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isConflict(err) || i == maxWriteAttempts-1 {
			break
		}
		delay := baseRetryDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite write conflict, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
	if isConflict(err) {
		return fmt.Errorf("%s after %d attempts: %w", op, maxWriteAttempts, err)
	}
	return err
}
