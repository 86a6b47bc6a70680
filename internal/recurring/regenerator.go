// Package recurring regenerates the next occurrence of a recurring task when
// the current occurrence is completed.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain/recurrence"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/outbox"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Notifier is told when a regeneration enqueued events.
type Notifier interface {
	Notify()
}

// result describes what a single task.completed event produced.
type result int

const (
	skipped result = iota
	regenerated
	// failed means the rule could not be evaluated and a
	// task.regeneration_failed event was emitted instead.
	failed
)

// Regenerator handles task.completed events.
type Regenerator struct {
	tx       store.Transactor
	ledger   idempotency.Ledger
	calc     recurrence.Calculator
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

var (
	_ events.Handler         = (*Regenerator)(nil)
	_ events.FailureReporter = (*Regenerator)(nil)
)

// New creates a Regenerator. notifier may be nil.
func New(tx store.Transactor, ledger idempotency.Ledger, calc recurrence.Calculator, notifier Notifier, logger *slog.Logger) *Regenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if calc == nil {
		calc = recurrence.NewCalculator()
	}
	return &Regenerator{
		tx:       tx,
		ledger:   ledger,
		calc:     calc,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "recurring_task_regenerator")),
		now:      time.Now,
	}
}

// HandleEvent implements events.Handler.
func (r *Regenerator) HandleEvent(ctx context.Context, env *events.Envelope) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	var p events.TaskCompletedPayload
	if err := env.UnmarshalData(&p); err != nil {
		return events.Permanent(fmt.Errorf("invalid task.completed payload: %w", err))
	}
	if !p.HasRecurrence {
		return nil
	}

	eventKey := env.ID.String()
	if err := idempotency.Claim(ctx, r.ledger, eventKey, idempotency.GroupRegenerator); err != nil {
		if errors.Is(err, idempotency.ErrDuplicate) {
			log.Info("duplicate task.completed ignored", slog.String("task_id", p.TaskID.String()))
			return nil
		}
		return fmt.Errorf("failed to claim event %s: %w", eventKey, err)
	}

	var res result
	err := r.tx.InTx(ctx, func(ctx context.Context, s store.Stores) error {
		var err error
		res, err = r.regenerate(ctx, s, &p)
		return err
	})
	if err != nil {
		if relErr := r.ledger.Release(context.WithoutCancel(ctx), eventKey, idempotency.GroupRegenerator); relErr != nil {
			log.Error("failed to release claim",
				slog.String("error", relErr.Error()),
				slog.String("task_id", p.TaskID.String()))
		}
		return fmt.Errorf("failed to regenerate task %s: %w", p.TaskID, err)
	}

	if res != skipped && r.notifier != nil {
		r.notifier.Notify()
	}
	return nil
}

// ReportFailure implements events.FailureReporter. It emits
// task.regeneration_failed for a completion whose retries ran out. The event
// id is derived from the completion so repeated reports collapse into one.
func (r *Regenerator) ReportFailure(ctx context.Context, env *events.Envelope, cause error) error {
	var p events.TaskCompletedPayload
	if err := env.UnmarshalData(&p); err != nil || !p.HasRecurrence {
		return nil
	}

	failedEnv, err := events.NewEnvelope(events.TaskRegenerationFailed, p.OwnerID, events.TaskRegenerationFailedPayload{
		TaskID:   p.TaskID,
		OwnerID:  p.OwnerID,
		Error:    cause.Error(),
		FailedAt: r.now().UTC(),
	})
	if err != nil {
		return err
	}
	failedEnv.ID = uuid.NewSHA1(env.ID, []byte(events.TaskRegenerationFailed))

	err = r.tx.InTx(ctx, func(ctx context.Context, s store.Stores) error {
		return outbox.Enqueue(ctx, s.Outbox, failedEnv)
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record regeneration failure for task %s: %w", p.TaskID, err)
	}

	logger.FromContextOrDefault(ctx, r.logger).Warn("regeneration abandoned",
		slog.String("task_id", p.TaskID.String()),
		slog.String("error", cause.Error()))
	if r.notifier != nil {
		r.notifier.Notify()
	}
	return nil
}

func (r *Regenerator) regenerate(ctx context.Context, s store.Stores, p *events.TaskCompletedPayload) (result, error) {
	log := logger.FromContextOrDefault(ctx, r.logger).With(slog.String("task_id", p.TaskID.String()))

	task, err := s.Tasks.GetByID(ctx, p.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		log.Warn("completed task not found, nothing to regenerate")
		return skipped, nil
	}
	if err != nil {
		return skipped, err
	}

	rule, err := s.Rules.GetByTaskID(ctx, task.ID)
	if errors.Is(err, store.ErrRuleNotFound) {
		log.Warn("task has no recurrence rule")
		return skipped, nil
	}
	if err != nil {
		return skipped, err
	}
	if !rule.Active {
		log.Info("recurrence rule inactive, not regenerating", slog.String("rule_id", rule.ID.String()))
		return skipped, nil
	}

	anchor := anchorFor(task, p)
	next, err := r.calc.NextOccurrence(rule, anchor)
	if err != nil {
		var ce *recurrence.ComputationError
		if !errors.As(err, &ce) {
			return skipped, err
		}
		log.Error("recurrence computation failed",
			slog.String("rule_id", rule.ID.String()),
			slog.String("error", err.Error()))
		env, err := events.NewEnvelope(events.TaskRegenerationFailed, task.OwnerID, events.TaskRegenerationFailedPayload{
			TaskID:   task.ID,
			OwnerID:  task.OwnerID,
			RuleID:   rule.ID,
			Error:    ce.Error(),
			FailedAt: r.now().UTC(),
		})
		if err != nil {
			return skipped, err
		}
		return failed, outbox.Enqueue(ctx, s.Outbox, env)
	}

	successor := task.NextOccurrence(next, r.now())
	if err := s.Tasks.Create(ctx, successor); err != nil {
		return skipped, fmt.Errorf("failed to create successor task: %w", err)
	}

	nextRule := rule.CloneFor(successor.ID, next)
	if err := s.Rules.Create(ctx, nextRule); err != nil {
		return skipped, fmt.Errorf("failed to create successor rule: %w", err)
	}
	if err := s.Rules.Advance(ctx, rule.ID, next); err != nil {
		return skipped, fmt.Errorf("failed to advance rule %s: %w", rule.ID, err)
	}

	reminders, err := s.Reminders.ListByTask(ctx, task.ID)
	if err != nil {
		return skipped, err
	}
	for _, rem := range reminders {
		if err := s.Reminders.Create(ctx, rem.CloneFor(successor.ID)); err != nil {
			return skipped, fmt.Errorf("failed to clone reminder %s: %w", rem.ID, err)
		}
	}

	env, err := events.NewEnvelope(events.TaskCreated, successor.OwnerID, events.TaskCreatedPayload{
		TaskID:        successor.ID,
		OwnerID:       successor.OwnerID,
		Title:         successor.Title,
		DueAt:         successor.DueAt,
		HasRecurrence: true,
		Recurrence:    recurrenceFields(nextRule),
		CreatedAt:     successor.CreatedAt,
	})
	if err != nil {
		return skipped, err
	}
	if err := outbox.Enqueue(ctx, s.Outbox, env); err != nil {
		return skipped, err
	}

	log.Info("next occurrence created",
		slog.String("new_task_id", successor.ID.String()),
		slog.Time("due_at", next),
		slog.Int("reminders", len(reminders)))
	return regenerated, nil
}

// anchorFor returns the instant the next occurrence is computed from: the
// completed task's due time, or its completion time when it had no due time.
func anchorFor(task *domain.Task, p *events.TaskCompletedPayload) time.Time {
	switch {
	case task.DueAt != nil:
		return *task.DueAt
	case task.CompletedAt != nil:
		return *task.CompletedAt
	default:
		return p.CompletedAt
	}
}

func recurrenceFields(rule *domain.RecurrenceRule) *events.RecurrenceFields {
	return &events.RecurrenceFields{
		Pattern:    string(rule.Pattern),
		Interval:   rule.Interval,
		DaysOfWeek: rule.DaysOfWeek,
		DayOfMonth: rule.DayOfMonth,
		Active:     rule.Active,
	}
}
