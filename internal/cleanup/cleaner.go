// Package cleanup reclaims abandoned editing sessions and their staged files.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursekit/draft-engine/internal/session"
)

// Cleaner handles periodic cleanup of expired sessions
type Cleaner struct {
	sessions *session.Manager
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sessions *session.Manager, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		sessions: sessions,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup finds and removes expired sessions with their staged files
func (c *Cleaner) cleanup() {
	expired := c.sessions.Expired(time.Now())
	if len(expired) == 0 {
		slog.Debug("no expired sessions found")
		return
	}

	slog.Info("found expired sessions", "count", len(expired))

	for _, s := range expired {
		slog.Info("deleting expired session",
			"id", s.ID,
			"principal", s.Principal,
			"expired_at", s.ExpiresAt,
		)

		if err := c.sessions.Delete(s.ID); err != nil {
			slog.Error("failed to delete expired session", "error", err, "id", s.ID)
		}
	}
}
