package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

var taskColumns = []string{
	"id", "owner_id", "title", "description", "priority", "tags", "due_at",
	"completed", "completed_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func TestTaskStoreCreate(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, nil)

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	task := &domain.Task{
		ID:        uuid.New(),
		OwnerID:   "user-1",
		Title:     "Water plants",
		Tags:      []string{"home"},
		DueAt:     &due,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO tasks").
		WithArgs(task.ID, "user-1", "Water plants", "", "", `["home"]`, due,
			false, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), task))
}

func TestTaskStoreCreateRejectsInvalid(t *testing.T) {
	db, _ := newMockDB(t)
	s := NewPostgresTaskStore(db, nil)

	err := s.Create(context.Background(), &domain.Task{ID: uuid.New(), OwnerID: "user-1"})

	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestTaskStoreGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, nil)

	id := uuid.New()
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	done := due.Add(-time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM tasks WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(taskColumns).AddRow(
			id.String(), "user-1", "Pay rent", "monthly", "high", []byte(`["bills","home"]`),
			due, true, done, done, done,
		))

	task, err := s.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, id, task.ID)
	assert.Equal(t, []string{"bills", "home"}, task.Tags)
	require.NotNil(t, task.DueAt)
	assert.True(t, due.Equal(*task.DueAt))
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.Completed)
}

func TestTaskStoreGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, nil)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM tasks").WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := s.GetByID(context.Background(), id)

	assert.True(t, errors.Is(err, store.ErrTaskNotFound))
}

func TestTaskStoreWithTx(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresTaskStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM tasks").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = s.WithTx(tx).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	require.NoError(t, tx.Rollback())
}
