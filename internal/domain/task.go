package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is a single occurrence of a user's to-do item. A recurring task is a
// chain of Tasks, each linked to its own RecurrenceRule.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: task ID is nil", ErrInvalidID)
	}
	if t.OwnerID == "" {
		return ErrEmptyOwner
	}
	if t.Title == "" {
		return ErrEmptyTitle
	}
	if t.Completed != (t.CompletedAt != nil) {
		return ErrCompletionMismatch
	}
	return nil
}

// NextOccurrence returns the successor of a completed recurring task: a new,
// uncompleted Task with the same owner, title, description, priority and tags,
// due at dueAt.
func (t *Task) NextOccurrence(dueAt time.Time, now time.Time) *Task {
	due := dueAt.UTC()
	var tags []string
	if len(t.Tags) > 0 {
		tags = append([]string(nil), t.Tags...)
	}
	return &Task{
		ID:          uuid.New(),
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Tags:        tags,
		DueAt:       &due,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
