package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
)

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task. It validates the task first and returns an
	// ErrInvalidEntity-wrapped error if the task is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sql.Tx) TaskStore
}

// RuleStore defines the interface for recurrence rule persistence.
type RuleStore interface {
	// Create saves a new recurrence rule. A task carries at most one rule;
	// a second one yields ErrDuplicate.
	Create(ctx context.Context, rule *domain.RecurrenceRule) error

	// GetByTaskID returns the rule attached to taskID.
	// Returns ErrRuleNotFound if the task has no rule.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.RecurrenceRule, error)

	// Advance records that rule id has been regenerated: next_due is set and
	// the rule is deactivated so the completed occurrence never spawns twice.
	Advance(ctx context.Context, id uuid.UUID, nextDue time.Time) error

	// WithTx returns a RuleStore bound to tx.
	WithTx(tx *sql.Tx) RuleStore
}

// DueReminder is a reminder claimed by the scheduler together with the task
// fields needed to build its reminder.due event.
type DueReminder struct {
	Reminder domain.Reminder
	OwnerID  string
	Title    string
	DueAt    time.Time
}

// ReminderStore defines the interface for reminder persistence.
type ReminderStore interface {
	// Create saves a new reminder.
	Create(ctx context.Context, reminder *domain.Reminder) error

	// ListByTask returns every reminder attached to taskID, oldest first.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Reminder, error)

	// ClaimDue marks up to limit due reminders as sent at now and returns
	// them. Rows locked by a concurrent claimer are skipped. Callers run it
	// inside a transaction together with the outbox insert for each result.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]DueReminder, error)

	// WithTx returns a ReminderStore bound to tx.
	WithTx(tx *sql.Tx) ReminderStore
}

// ContactStore resolves owners to delivery destinations.
type ContactStore interface {
	// GetByOwner returns the contact for ownerID.
	// Returns ErrContactNotFound if none is registered.
	GetByOwner(ctx context.Context, ownerID string) (*domain.Contact, error)
}
