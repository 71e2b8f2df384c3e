package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = time.Minute

// StartJanitor runs a background goroutine that expires sessions idle for
// longer than idle. The returned channel is closed once the goroutine has
// exited after ctx is canceled.
func StartJanitor(ctx context.Context, m *Manager, idle, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		logger.Info("Session janitor started", "interval", interval, "idle_ttl", idle)

		for {
			select {
			case <-ticker.C:
				if n := m.Expire(ctx, idle); n > 0 {
					logger.Info("Session janitor expired idle sessions", "count", n, "remaining", m.Len())
				}
			case <-ctx.Done():
				logger.Info("Session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}
