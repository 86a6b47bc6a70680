package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically purges ledger entries older than the retention window.
// The retention must exceed the transport's redelivery window, otherwise a
// late redelivery could be processed twice.
type Reaper struct {
	ledger    Ledger
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewReaper creates a Reaper.
func NewReaper(ledger Ledger, retention, interval time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{
		ledger:    ledger,
		retention: retention,
		interval:  interval,
		logger:    logger.With("component", "ledger_reaper"),
		now:       time.Now,
	}
}

// Run purges once immediately and then on every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.PurgeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.PurgeOnce(ctx)
		}
	}
}

// PurgeOnce removes entries older than the retention window. Failures are
// logged and retried on the next interval.
func (r *Reaper) PurgeOnce(ctx context.Context) {
	cutoff := r.now().UTC().Add(-r.retention)
	n, err := r.ledger.Purge(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to purge idempotency ledger", "cutoff", cutoff, "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("purged idempotency ledger", "removed", n, "cutoff", cutoff)
	}
}
