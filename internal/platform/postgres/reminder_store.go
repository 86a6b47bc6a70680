package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// PostgresReminderStore implements store.ReminderStore.
type PostgresReminderStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReminderStore creates a new PostgresReminderStore.
func NewPostgresReminderStore(db store.DBTX, logger *slog.Logger) *PostgresReminderStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReminderStore{
		db:     db,
		logger: logger.With(slog.String("component", "reminder_store")),
	}
}

var _ store.ReminderStore = (*PostgresReminderStore)(nil)

// Create implements store.ReminderStore.Create
func (s *PostgresReminderStore) Create(ctx context.Context, reminder *domain.Reminder) error {
	if err := reminder.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	channels, err := toJSONB(reminder.Channels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reminders (id, task_id, lead_time_seconds, channels, sent_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		reminder.ID,
		reminder.TaskID,
		int64(reminder.LeadTime/time.Second),
		channels,
		nullTime(reminder.SentAt),
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create reminder",
			slog.String("error", err.Error()),
			slog.String("task_id", reminder.TaskID.String()))
		return MapError(err)
	}
	return nil
}

// ListByTask implements store.ReminderStore.ListByTask
func (s *PostgresReminderStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Reminder, error) {
	query := `
		SELECT id, task_id, lead_time_seconds, channels, sent_at
		FROM reminders
		WHERE task_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var reminders []*domain.Reminder
	for rows.Next() {
		var (
			r        domain.Reminder
			lead     int64
			channels []byte
			sentAt   sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.TaskID, &lead, &channels, &sentAt); err != nil {
			return nil, MapError(err)
		}
		if r.Channels, err = fromJSONB[domain.Channel](channels); err != nil {
			return nil, err
		}
		r.LeadTime = time.Duration(lead) * time.Second
		r.SentAt = timePtr(sentAt)
		reminders = append(reminders, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return reminders, nil
}

// claimDueQuery locks due rows, skipping those held by a concurrent tick,
// and stamps them sent in the same statement.
const claimDueQuery = `
	WITH due AS (
		SELECT r.id, t.owner_id, t.title, t.due_at
		FROM reminders r
		JOIN tasks t ON t.id = r.task_id
		WHERE r.sent_at IS NULL
			AND t.completed = FALSE
			AND t.due_at IS NOT NULL
			AND t.due_at - make_interval(secs => r.lead_time_seconds) <= $1
		ORDER BY t.due_at, r.id
		LIMIT $2
		FOR UPDATE OF r SKIP LOCKED
	)
	UPDATE reminders
	SET sent_at = $1
	FROM due
	WHERE reminders.id = due.id
	RETURNING reminders.id, reminders.task_id, reminders.lead_time_seconds,
		reminders.channels, due.owner_id, due.title, due.due_at
`

// ClaimDue implements store.ReminderStore.ClaimDue
func (s *PostgresReminderStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]store.DueReminder, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now = now.UTC()

	rows, err := s.db.QueryContext(ctx, claimDueQuery, now, limit)
	if err != nil {
		log.Error("failed to claim due reminders", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var claimed []store.DueReminder
	for rows.Next() {
		var (
			d        store.DueReminder
			lead     int64
			channels []byte
		)
		if err := rows.Scan(
			&d.Reminder.ID,
			&d.Reminder.TaskID,
			&lead,
			&channels,
			&d.OwnerID,
			&d.Title,
			&d.DueAt,
		); err != nil {
			return nil, MapError(err)
		}
		if d.Reminder.Channels, err = fromJSONB[domain.Channel](channels); err != nil {
			return nil, err
		}
		d.Reminder.LeadTime = time.Duration(lead) * time.Second
		sentAt := now
		d.Reminder.SentAt = &sentAt
		d.DueAt = d.DueAt.UTC()
		claimed = append(claimed, d)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	if len(claimed) > 0 {
		log.Debug("claimed due reminders", slog.Int("count", len(claimed)))
	}
	return claimed, nil
}

// WithTx implements store.ReminderStore.WithTx
func (s *PostgresReminderStore) WithTx(tx *sql.Tx) store.ReminderStore {
	return &PostgresReminderStore{db: tx, logger: s.logger}
}
