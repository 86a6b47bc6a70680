package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

func TestLedgerTryClaim(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "first claim", affected: 1, want: true},
		{name: "duplicate claim", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			l := NewLedger(db, nil)
			l.now = func() time.Time { return now }

			mock.ExpectExec("ON CONFLICT \\(event_key, consumer_group\\) DO NOTHING").
				WithArgs("evt-1:email", idempotency.GroupDispatcher, now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := l.TryClaim(context.Background(), "evt-1:email", idempotency.GroupDispatcher)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLedgerClaimReportsDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	l := NewLedger(db, nil)

	mock.ExpectExec("INSERT INTO processed_events").WillReturnResult(sqlmock.NewResult(0, 0))

	err := idempotency.Claim(context.Background(), l, "evt-1", idempotency.GroupRegenerator)
	assert.ErrorIs(t, err, idempotency.ErrDuplicate)
}

func TestLedgerReleaseAndPurge(t *testing.T) {
	db, mock := newMockDB(t)
	l := NewLedger(db, nil)
	cutoff := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM processed_events WHERE event_key").
		WithArgs("evt-1", idempotency.GroupRegenerator).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM processed_events WHERE processed_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	require.NoError(t, l.Release(context.Background(), "evt-1", idempotency.GroupRegenerator))
	n, err := l.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}

func TestContactStoreGetByOwner(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresContactStore(db, nil)

	mock.ExpectQuery("FROM contacts WHERE owner_id = \\$1").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id", "email", "push_token"}).
			AddRow("user-1", "user1@example.com", nil))
	mock.ExpectQuery("FROM contacts").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	c, err := s.GetByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user1@example.com", c.Destination(domain.ChannelEmail))
	assert.Equal(t, "", c.Destination(domain.ChannelPush))

	_, err = s.GetByOwner(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrContactNotFound)
}

func TestDeadLetterStore(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewDeadLetterStore(db, nil)
	failed := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	dl := events.DeadLetter{
		EventID:   "evt-9",
		EventType: "task.completed.v1",
		Key:       "user-1",
		Payload:   []byte(`{"bad":true}`),
		Reason:    "schema: missing task_id",
		Attempts:  1,
		FailedAt:  failed,
	}
	mock.ExpectExec("INSERT INTO dead_letters").
		WithArgs("evt-9", "task.completed.v1", "user-1", dl.Payload, dl.Reason, 1, failed).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM dead_letters").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	require.NoError(t, s.DeadLetter(context.Background(), dl))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTransactorBindsStoresToTx(t *testing.T) {
	db, mock := newMockDB(t)
	stores := store.Stores{
		Tasks:     NewPostgresTaskStore(db, nil),
		Rules:     NewPostgresRuleStore(db, nil),
		Reminders: NewPostgresReminderStore(db, nil),
		Outbox:    NewPostgresOutboxStore(db, nil),
	}
	tr := NewTransactor(db, stores)
	ruleID := uuid.New()
	next := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE recurrence_rules").WithArgs(next, ruleID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), next))
	mock.ExpectCommit()

	err := tr.InTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		if err := s.Rules.Advance(ctx, ruleID, next); err != nil {
			return err
		}
		return s.Outbox.Enqueue(ctx, &store.OutboxMessage{EventID: "e", EventType: "task.created.v1", Key: "k", Payload: []byte(`{}`)})
	})
	require.NoError(t, err)
}

func TestTransactorRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tr := NewTransactor(db, store.Stores{
		Tasks:     NewPostgresTaskStore(db, nil),
		Rules:     NewPostgresRuleStore(db, nil),
		Reminders: NewPostgresReminderStore(db, nil),
		Outbox:    NewPostgresOutboxStore(db, nil),
	})

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE recurrence_rules").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := tr.InTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return s.Rules.Advance(ctx, uuid.New(), time.Now())
	})
	assert.ErrorIs(t, err, store.ErrRuleNotFound)
}
