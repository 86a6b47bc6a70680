package postgres

import (
	"context"
	"log/slog"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// DeadLetterStore persists dead-lettered events. It is the sink used with
// the in-memory bus.
type DeadLetterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewDeadLetterStore creates a new DeadLetterStore.
func NewDeadLetterStore(db store.DBTX, logger *slog.Logger) *DeadLetterStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadLetterStore{
		db:     db,
		logger: logger.With(slog.String("component", "dead_letter_store")),
	}
}

var _ events.DeadLetterSink = (*DeadLetterStore)(nil)

// DeadLetter implements events.DeadLetterSink.
func (s *DeadLetterStore) DeadLetter(ctx context.Context, dl events.DeadLetter) error {
	query := `
		INSERT INTO dead_letters (event_id, event_type, partition_key, payload, reason, attempts, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		dl.EventID,
		dl.EventType,
		dl.Key,
		dl.Payload,
		dl.Reason,
		dl.Attempts,
		dl.FailedAt.UTC(),
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to store dead letter",
			slog.String("error", err.Error()),
			slog.String("event_id", dl.EventID))
		return MapError(err)
	}
	return nil
}

// Count returns the number of stored dead letters.
func (s *DeadLetterStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, MapError(err)
	}
	return n, nil
}
