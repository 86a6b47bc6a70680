package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Ledger implements idempotency.Ledger on the processed_events table.
type Ledger struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a new Postgres-backed idempotency ledger.
func NewLedger(db store.DBTX, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:     db,
		logger: logger.With(slog.String("component", "idempotency_ledger")),
		now:    time.Now,
	}
}

var _ idempotency.Ledger = (*Ledger)(nil)

// TryClaim implements idempotency.Ledger.TryClaim
func (l *Ledger) TryClaim(ctx context.Context, eventKey, group string) (bool, error) {
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_key, consumer_group, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_key, consumer_group) DO NOTHING
	`, eventKey, group, l.now().UTC())
	if err != nil {
		return false, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release implements idempotency.Ledger.Release
func (l *Ledger) Release(ctx context.Context, eventKey, group string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE event_key = $1 AND consumer_group = $2`,
		eventKey, group)
	return MapError(err)
}

// Purge implements idempotency.Ledger.Purge
func (l *Ledger) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE processed_at < $1`, before.UTC())
	if err != nil {
		return 0, MapError(err)
	}
	return result.RowsAffected()
}
