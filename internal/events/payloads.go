package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sosodev/duration"
)

// RecurrenceFields mirrors a recurrence rule on the wire.
type RecurrenceFields struct {
	Pattern    string `json:"pattern" validate:"required,oneof=daily weekly monthly"`
	Interval   int    `json:"interval" validate:"gte=1"`
	DaysOfWeek []int  `json:"days_of_week,omitempty" validate:"omitempty,dive,gte=0,lte=6"`
	DayOfMonth int    `json:"day_of_month,omitempty" validate:"gte=0,lte=31"`
	Active     bool   `json:"active"`
}

// TaskCompletedPayload is the data of task.completed.v1.
type TaskCompletedPayload struct {
	TaskID        uuid.UUID         `json:"task_id" validate:"required"`
	OwnerID       string            `json:"owner_id" validate:"required"`
	CompletedAt   time.Time         `json:"completed_at" validate:"required"`
	HasRecurrence bool              `json:"has_recurrence"`
	Recurrence    *RecurrenceFields `json:"recurrence,omitempty"`
}

// TaskCreatedPayload is the data of task.created.v1.
type TaskCreatedPayload struct {
	TaskID        uuid.UUID         `json:"task_id" validate:"required"`
	OwnerID       string            `json:"owner_id" validate:"required"`
	Title         string            `json:"title" validate:"required"`
	DueAt         *time.Time        `json:"due_at,omitempty"`
	HasRecurrence bool              `json:"has_recurrence"`
	Recurrence    *RecurrenceFields `json:"recurrence,omitempty"`
	CreatedAt     time.Time         `json:"created_at" validate:"required"`
}

// TaskRegenerationFailedPayload is the data of task.regeneration_failed.v1.
type TaskRegenerationFailedPayload struct {
	TaskID   uuid.UUID `json:"task_id" validate:"required"`
	OwnerID  string    `json:"owner_id" validate:"required"`
	RuleID   uuid.UUID `json:"rule_id"`
	Error    string    `json:"error" validate:"required"`
	FailedAt time.Time `json:"failed_at" validate:"required"`
}

// ReminderDuePayload is the data of reminder.due.v1.
type ReminderDuePayload struct {
	ReminderID   uuid.UUID `json:"reminder_id" validate:"required"`
	TaskID       uuid.UUID `json:"task_id" validate:"required"`
	OwnerID      string    `json:"owner_id" validate:"required"`
	TaskTitle    string    `json:"task_title" validate:"required"`
	DueAt        time.Time `json:"due_at" validate:"required"`
	RemindBefore string    `json:"remind_before" validate:"required,iso8601_duration"`
	Channels     []string  `json:"channels" validate:"required,min=1,dive,oneof=email push"`
}

// LeadTime parses RemindBefore.
func (p *ReminderDuePayload) LeadTime() (time.Duration, error) {
	d, err := duration.Parse(p.RemindBefore)
	if err != nil {
		return 0, fmt.Errorf("invalid remind_before %q: %w", p.RemindBefore, err)
	}
	return d.ToTimeDuration(), nil
}

// FormatLeadTime renders a lead time as an ISO-8601 duration such as "PT1H".
func FormatLeadTime(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	return duration.Format(d)
}

// NotificationSentPayload is the data of notification.sent.v1.
type NotificationSentPayload struct {
	NotificationID uuid.UUID `json:"notification_id" validate:"required"`
	OwnerID        string    `json:"owner_id" validate:"required"`
	TaskID         uuid.UUID `json:"task_id" validate:"required"`
	Channel        string    `json:"channel" validate:"required,oneof=email push"`
	Message        string    `json:"message" validate:"required"`
	SentAt         time.Time `json:"sent_at" validate:"required"`
}

// NotificationFailedPayload is the data of notification.failed.v1.
type NotificationFailedPayload struct {
	NotificationID uuid.UUID `json:"notification_id" validate:"required"`
	OwnerID        string    `json:"owner_id" validate:"required"`
	TaskID         uuid.UUID `json:"task_id" validate:"required"`
	Channel        string    `json:"channel" validate:"required,oneof=email push"`
	Message        string    `json:"message" validate:"required"`
	Error          string    `json:"error" validate:"required"`
	FailedAt       time.Time `json:"failed_at" validate:"required"`
}
