package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper is the slice of the session layer the janitor needs.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
	CleanupInactive(ctx context.Context, inactivityThreshold time.Duration) (int, error)
}

// Janitor periodically removes expired and long-inactive device sessions.
// The two sweeps run on independent tickers, offset so they do not land in
// the same slot. Sweep errors are logged and never surfaced to requests.
type Janitor struct {
	sessions            SessionSweeper
	logger              *slog.Logger
	expiredInterval     time.Duration
	inactiveInterval    time.Duration
	inactivityThreshold time.Duration
	stopCh              chan struct{}
}

// NewJanitor creates a new Janitor
func NewJanitor(
	sessions SessionSweeper,
	logger *slog.Logger,
	expiredInterval time.Duration,
	inactiveInterval time.Duration,
	inactivityThreshold time.Duration,
) *Janitor {
	return &Janitor{
		sessions:            sessions,
		logger:              logger,
		expiredInterval:     expiredInterval,
		inactiveInterval:    inactiveInterval,
		inactivityThreshold: inactivityThreshold,
		stopCh:              make(chan struct{}),
	}
}

// Start runs both sweeps until Stop is called or the context is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	expiredTicker := time.NewTicker(j.expiredInterval)
	defer expiredTicker.Stop()

	// Offset the inactive sweep so the two never share a tick.
	inactiveTicker := time.NewTicker(j.inactiveInterval + j.inactiveInterval/24)
	defer inactiveTicker.Stop()

	// Run the expired sweep immediately on startup
	j.sweepExpired(ctx)

	for {
		select {
		case <-expiredTicker.C:
			j.sweepExpired(ctx)
		case <-inactiveTicker.C:
			j.sweepInactive(ctx)
		case <-j.stopCh:
			j.logger.Info("session janitor stopped")
			return
		case <-ctx.Done():
			j.logger.Info("session janitor context cancelled")
			return
		}
	}
}

// sweepExpired deletes every session past its expiry.
func (j *Janitor) sweepExpired(ctx context.Context) {
	j.logger.Info("starting expired session sweep")

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := j.sessions.CleanupExpired(sweepCtx)
	if err != nil {
		j.logger.Error("expired session sweep failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		j.logger.Info("expired session sweep completed", slog.Int64("rows_deleted", deleted))
	}
}

// sweepInactive deletes sessions idle longer than the inactivity threshold,
// even if not yet expired.
func (j *Janitor) sweepInactive(ctx context.Context) {
	j.logger.Info("starting inactive session sweep")

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := j.sessions.CleanupInactive(sweepCtx, j.inactivityThreshold)
	if err != nil {
		j.logger.Error("inactive session sweep failed", slog.Any("error", err))
		return
	}

	if deleted > 0 {
		j.logger.Info("inactive session sweep completed", slog.Int("rows_deleted", deleted))
	}
}

// Stop signals the janitor to stop
func (j *Janitor) Stop() {
	close(j.stopCh)
}
