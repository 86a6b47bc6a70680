package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/lease"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/mocks"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

var dueAt = time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC)

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

type fixedLease struct {
	held bool
	err  error
}

func (l *fixedLease) Acquire(context.Context) (bool, error) { return l.held, l.err }
func (l *fixedLease) Release(context.Context) error         { return nil }
func (l *fixedLease) Held() bool                            { return l.held }

func newScheduler(ms *mocks.MemoryStore, l lease.Lease, n Notifier, batch int, now time.Time) *Scheduler {
	s := New(ms, l, n, config.SchedulerConfig{
		TickInterval: time.Minute,
		TickTimeout:  time.Second,
		BatchSize:    batch,
	}, nil)
	s.now = func() time.Time { return now }
	return s
}

func seedTask(ms *mocks.MemoryStore, due time.Time, completed bool, leads ...time.Duration) (*domain.Task, []*domain.Reminder) {
	d := due
	task := &domain.Task{
		ID:        uuid.New(),
		OwnerID:   "user-1",
		Title:     "Submit report",
		DueAt:     &d,
		CreatedAt: due.Add(-48 * time.Hour),
	}
	if completed {
		at := due.Add(-3 * time.Hour)
		task.Completed = true
		task.CompletedAt = &at
	}
	var reminders []*domain.Reminder
	for _, lead := range leads {
		reminders = append(reminders, &domain.Reminder{
			ID:       uuid.New(),
			TaskID:   task.ID,
			LeadTime: lead,
			Channels: []domain.Channel{domain.ChannelEmail, domain.ChannelPush},
		})
	}
	ms.Seed(task, nil, reminders...)
	return task, reminders
}

func decodeDue(t *testing.T, msg store.OutboxMessage) events.ReminderDuePayload {
	t.Helper()
	env, err := events.Decode(msg.Payload)
	require.NoError(t, err)
	var p events.ReminderDuePayload
	require.NoError(t, env.UnmarshalData(&p))
	return p
}

func TestTickFiresAtLeadTimeAndNotBefore(t *testing.T) {
	ms := mocks.NewMemoryStore()
	task, reminders := seedTask(ms, dueAt, false, time.Hour)
	notifier := &countingNotifier{}

	early := newScheduler(ms, lease.Static{}, notifier, 10, dueAt.Add(-time.Hour-time.Second))
	n, err := early.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "one second before the fire time nothing is due")
	assert.Empty(t, ms.OutboxMessages())
	assert.Zero(t, notifier.n)

	onTime := newScheduler(ms, lease.Static{}, notifier, 10, dueAt.Add(-time.Hour))
	n, err = onTime.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, notifier.n)

	msgs := ms.OutboxMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "reminder.due.v1", msgs[0].EventType)
	assert.Equal(t, "user-1", msgs[0].Key)

	p := decodeDue(t, msgs[0])
	assert.Equal(t, reminders[0].ID, p.ReminderID)
	assert.Equal(t, task.ID, p.TaskID)
	assert.Equal(t, "Submit report", p.TaskTitle)
	assert.True(t, dueAt.Equal(p.DueAt))
	assert.Equal(t, "PT1H", p.RemindBefore)
	assert.Equal(t, []string{"email", "push"}, p.Channels)

	stored := ms.RemindersFor(task.ID)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].SentAt)

	n, err = onTime.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a sent reminder never fires again")
	assert.Len(t, ms.OutboxMessages(), 1)
}

func TestTickFiresImmediatelyWhenLeadExceedsRemainingTime(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, false, 24*time.Hour)

	s := newScheduler(ms, lease.Static{}, nil, 10, dueAt.Add(-30*time.Minute))
	n, err := s.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p := decodeDue(t, ms.OutboxMessages()[0])
	lead, err := p.LeadTime()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, lead)
}

func TestTickSkipsCompletedTasks(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, true, time.Hour)

	s := newScheduler(ms, lease.Static{}, nil, 10, dueAt)
	n, err := s.Tick(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, ms.OutboxMessages())
}

func TestTickDrainsAcrossBatches(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, false, time.Hour, 2*time.Hour, 3*time.Hour)
	seedTask(ms, dueAt.Add(time.Hour), false, 2*time.Hour, 3*time.Hour)
	notifier := &countingNotifier{}

	s := newScheduler(ms, lease.Static{}, notifier, 2, dueAt)
	n, err := s.Tick(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, ms.OutboxMessages(), 5)
	assert.Equal(t, 1, notifier.n, "the relay is woken once per tick")
	assert.Equal(t, 5, s.Status().LastClaimed)
}

func TestTickWithoutLeaseClaimsNothing(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, false, time.Hour)

	s := newScheduler(ms, &fixedLease{held: false}, nil, 10, dueAt)
	n, err := s.Tick(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, ms.OutboxMessages())
	assert.False(t, s.Status().LeaseHeld)
}

func TestTickLeaseError(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, false, time.Hour)

	s := newScheduler(ms, &fixedLease{err: errors.New("redis down")}, nil, 10, dueAt)
	n, err := s.Tick(context.Background())

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, ms.OutboxMessages())
	assert.Contains(t, s.Status().LastError, "redis down")
}

func TestTickRollsBackClaimWhenOutboxFails(t *testing.T) {
	ms := mocks.NewMemoryStore()
	task, _ := seedTask(ms, dueAt, false, time.Hour)
	ms.EnqueueFn = func(*store.OutboxMessage) error { return errors.New("disk full") }

	s := newScheduler(ms, lease.Static{}, nil, 10, dueAt)
	n, err := s.Tick(context.Background())

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Nil(t, ms.RemindersFor(task.ID)[0].SentAt, "the claim must roll back with the outbox insert")

	ms.EnqueueFn = nil
	n, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the next tick picks the reminder up again")
}

func TestRunStopsOnCancel(t *testing.T) {
	ms := mocks.NewMemoryStore()
	seedTask(ms, dueAt, false, time.Hour)
	s := newScheduler(ms, lease.Static{}, nil, 10, dueAt)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(ms.OutboxMessages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
