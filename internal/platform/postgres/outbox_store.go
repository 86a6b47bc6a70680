package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// relayLockID is the advisory lock key shared by every outbox relay.
const relayLockID int64 = 0x7461736b6f7574

// PostgresOutboxStore implements store.OutboxStore.
type PostgresOutboxStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresOutboxStore creates a new PostgresOutboxStore.
func NewPostgresOutboxStore(db store.DBTX, logger *slog.Logger) *PostgresOutboxStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresOutboxStore{
		db:     db,
		logger: logger.With(slog.String("component", "outbox_store")),
	}
}

var _ store.OutboxStore = (*PostgresOutboxStore)(nil)

// Enqueue implements store.OutboxStore.Enqueue
func (s *PostgresOutboxStore) Enqueue(ctx context.Context, msg *store.OutboxMessage) error {
	query := `
		INSERT INTO outbox (event_id, event_type, partition_key, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		msg.EventID,
		msg.EventType,
		msg.Key,
		string(msg.Payload),
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to enqueue outbox message",
			slog.String("error", err.Error()),
			slog.String("event_id", msg.EventID),
			slog.String("event_type", msg.EventType))
		return MapError(err)
	}
	return nil
}

// FetchPending implements store.OutboxStore.FetchPending
func (s *PostgresOutboxStore) FetchPending(ctx context.Context, limit int) ([]*store.OutboxMessage, error) {
	query := `
		SELECT id, event_id, event_type, partition_key, payload, created_at, attempts, last_error
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*store.OutboxMessage
	for rows.Next() {
		var (
			m         store.OutboxMessage
			lastError sql.NullString
		)
		if err := rows.Scan(
			&m.ID,
			&m.EventID,
			&m.EventType,
			&m.Key,
			&m.Payload,
			&m.CreatedAt,
			&m.Attempts,
			&lastError,
		); err != nil {
			return nil, MapError(err)
		}
		m.LastError = lastError.String
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return msgs, nil
}

// MarkPublished implements store.OutboxStore.MarkPublished
func (s *PostgresOutboxStore) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrOutboxMessageNotFound)
}

// MarkFailed implements store.OutboxStore.MarkFailed
func (s *PostgresOutboxStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $1 WHERE id = $2`, reason, id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrOutboxMessageNotFound)
}

// TryLockRelay implements store.OutboxStore.TryLockRelay
func (s *PostgresOutboxStore) TryLockRelay(ctx context.Context) (bool, error) {
	var locked bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT pg_try_advisory_xact_lock($1)`, relayLockID).Scan(&locked); err != nil {
		return false, MapError(err)
	}
	return locked, nil
}

// CountPending implements store.OutboxStore.CountPending
func (s *PostgresOutboxStore) CountPending(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, MapError(err)
	}
	return n, nil
}

// WithTx implements store.OutboxStore.WithTx
func (s *PostgresOutboxStore) WithTx(tx *sql.Tx) store.OutboxStore {
	return &PostgresOutboxStore{db: tx, logger: s.logger}
}
