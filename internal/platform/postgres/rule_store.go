package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// PostgresRuleStore implements store.RuleStore.
type PostgresRuleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRuleStore creates a new PostgresRuleStore.
func NewPostgresRuleStore(db store.DBTX, logger *slog.Logger) *PostgresRuleStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRuleStore{
		db:     db,
		logger: logger.With(slog.String("component", "rule_store")),
	}
}

var _ store.RuleStore = (*PostgresRuleStore)(nil)

// Create implements store.RuleStore.Create
func (s *PostgresRuleStore) Create(ctx context.Context, rule *domain.RecurrenceRule) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	days, err := toJSONB(rule.DaysOfWeek)
	if err != nil {
		return err
	}
	var dayOfMonth sql.NullInt32
	if rule.DayOfMonth != 0 {
		dayOfMonth = sql.NullInt32{Int32: int32(rule.DayOfMonth), Valid: true}
	}

	query := `
		INSERT INTO recurrence_rules (id, task_id, pattern, interval_count, days_of_week,
			day_of_month, next_due, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		rule.ID,
		rule.TaskID,
		string(rule.Pattern),
		rule.Interval,
		days,
		dayOfMonth,
		nullTime(rule.NextDue),
		rule.Active,
	)
	if err != nil {
		log.Error("failed to create recurrence rule",
			slog.String("error", err.Error()),
			slog.String("task_id", rule.TaskID.String()))
		return MapError(err)
	}
	return nil
}

// GetByTaskID implements store.RuleStore.GetByTaskID
func (s *PostgresRuleStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.RecurrenceRule, error) {
	query := `
		SELECT id, task_id, pattern, interval_count, days_of_week, day_of_month, next_due, active
		FROM recurrence_rules
		WHERE task_id = $1
	`

	var (
		rule       domain.RecurrenceRule
		pattern    string
		days       []byte
		dayOfMonth sql.NullInt32
		nextDue    sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, taskID).Scan(
		&rule.ID,
		&rule.TaskID,
		&pattern,
		&rule.Interval,
		&days,
		&dayOfMonth,
		&nextDue,
		&rule.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRuleNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get recurrence rule",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}

	rule.Pattern = domain.Pattern(pattern)
	if rule.DaysOfWeek, err = fromJSONB[int](days); err != nil {
		return nil, err
	}
	if dayOfMonth.Valid {
		rule.DayOfMonth = int(dayOfMonth.Int32)
	}
	rule.NextDue = timePtr(nextDue)
	return &rule, nil
}

// Advance implements store.RuleStore.Advance
func (s *PostgresRuleStore) Advance(ctx context.Context, id uuid.UUID, nextDue time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE recurrence_rules SET next_due = $1, active = FALSE WHERE id = $2`,
		nextDue.UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrRuleNotFound)
}

// WithTx implements store.RuleStore.WithTx
func (s *PostgresRuleStore) WithTx(tx *sql.Tx) store.RuleStore {
	return &PostgresRuleStore{db: tx, logger: s.logger}
}
