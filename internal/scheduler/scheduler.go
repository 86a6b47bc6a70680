// Package scheduler turns due reminders into reminder.due events.
//
// Each tick runs only on the replica holding the lease. A tick claims due
// reminders and writes their events to the outbox in the same transaction,
// so a reminder is marked sent if and only if its event will be published.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/lease"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/outbox"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Notifier is told when a tick enqueued events. *outbox.Relay implements it.
type Notifier interface {
	Notify()
}

// Status describes the most recent tick.
type Status struct {
	LeaseHeld   bool      `json:"lease_held"`
	LastTick    time.Time `json:"last_tick,omitempty"`
	LastClaimed int       `json:"last_claimed"`
	LastError   string    `json:"last_error,omitempty"`
}

// Scheduler periodically claims due reminders.
type Scheduler struct {
	tx          store.Transactor
	lease       lease.Lease
	notifier    Notifier
	interval    time.Duration
	tickTimeout time.Duration
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	status Status
}

// New creates a Scheduler. notifier may be nil.
func New(tx store.Transactor, l lease.Lease, notifier Notifier, cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tx:          tx,
		lease:       l,
		notifier:    notifier,
		interval:    cfg.TickInterval,
		tickTimeout: cfg.TickTimeout,
		batchSize:   cfg.BatchSize,
		logger:      logger.With(slog.String("component", "reminder_scheduler")),
		now:         time.Now,
	}
}

// Run ticks until ctx is cancelled and then releases the lease. A tick that
// overruns the interval causes the missed ticks to be dropped; the next tick
// re-evaluates the full due set.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release lease", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize))

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduler tick failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick claims due reminders in batches until none remain or the tick
// deadline passes. It returns how many reminders were claimed. A replica
// that does not hold the lease claims nothing.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	held, err := s.lease.Acquire(ctx)
	if err != nil {
		s.record(false, 0, err)
		return 0, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !held {
		logger.FromContextOrDefault(ctx, s.logger).Debug("lease held elsewhere, skipping tick")
		s.record(false, 0, nil)
		return 0, nil
	}

	if s.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.tickTimeout)
		defer cancel()
	}

	total := 0
	for {
		n, err := s.claimBatch(ctx)
		total += n
		if err != nil {
			s.finish(total)
			s.record(true, total, err)
			return total, err
		}
		if n < s.batchSize || ctx.Err() != nil {
			break
		}
	}

	s.finish(total)
	s.record(true, total, nil)
	return total, nil
}

func (s *Scheduler) finish(total int) {
	if total == 0 {
		return
	}
	s.logger.Info("reminders claimed", slog.Int("count", total))
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

// claimBatch claims one batch and enqueues a reminder.due event for each
// claimed reminder, atomically.
func (s *Scheduler) claimBatch(ctx context.Context) (int, error) {
	now := s.now().UTC()
	claimed := 0

	err := s.tx.InTx(ctx, func(ctx context.Context, st store.Stores) error {
		due, err := st.Reminders.ClaimDue(ctx, now, s.batchSize)
		if err != nil {
			return err
		}
		for _, d := range due {
			channels := make([]string, len(d.Reminder.Channels))
			for i, ch := range d.Reminder.Channels {
				channels[i] = string(ch)
			}
			env, err := events.NewEnvelope(events.ReminderDue, d.OwnerID, events.ReminderDuePayload{
				ReminderID:   d.Reminder.ID,
				TaskID:       d.Reminder.TaskID,
				OwnerID:      d.OwnerID,
				TaskTitle:    d.Title,
				DueAt:        d.DueAt,
				RemindBefore: events.FormatLeadTime(d.Reminder.LeadTime),
				Channels:     channels,
			})
			if err != nil {
				return err
			}
			if err := outbox.Enqueue(ctx, st.Outbox, env); err != nil {
				return err
			}
		}
		claimed = len(due)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to claim due reminders: %w", err)
	}
	return claimed, nil
}

func (s *Scheduler) record(held bool, claimed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{LeaseHeld: held, LastTick: s.now().UTC(), LastClaimed: claimed}
	if err != nil {
		s.status.LastError = err.Error()
	}
}

// Status returns a snapshot of the last tick.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
