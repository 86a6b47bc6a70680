package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel names a notification delivery medium.
type Channel string

// Supported channels.
const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	return c == ChannelEmail || c == ChannelPush
}

// Reminder asks for a notification LeadTime before its task is due.
type Reminder struct {
	ID       uuid.UUID     `json:"id"`
	TaskID   uuid.UUID     `json:"task_id"`
	LeadTime time.Duration `json:"lead_time"`
	Channels []Channel     `json:"channels"`
	SentAt   *time.Time    `json:"sent_at,omitempty"`
}

// Validate checks if the Reminder has valid data.
func (r *Reminder) Validate() error {
	if r.ID == uuid.Nil || r.TaskID == uuid.Nil {
		return fmt.Errorf("%w: reminder and task IDs are required", ErrInvalidID)
	}
	if r.LeadTime < 0 {
		return ErrNegativeLeadTime
	}
	if len(r.Channels) == 0 {
		return ErrNoChannels
	}
	for _, c := range r.Channels {
		if !c.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, c)
		}
	}
	return nil
}

// FireAt returns the instant at which the reminder becomes eligible, or false
// if the task has no due timestamp.
func (r *Reminder) FireAt(task *Task) (time.Time, bool) {
	if task == nil || task.DueAt == nil {
		return time.Time{}, false
	}
	return task.DueAt.Add(-r.LeadTime), true
}

// IsDue reports whether the reminder should fire at now: the task has a due
// timestamp and is not completed, the reminder has not been sent, and
// due - lead <= now. A lead time longer than the time remaining is due
// immediately.
func (r *Reminder) IsDue(task *Task, now time.Time) bool {
	if r.SentAt != nil || task == nil || task.Completed {
		return false
	}
	at, ok := r.FireAt(task)
	if !ok {
		return false
	}
	return !at.After(now)
}

// CloneFor returns an unsent copy of r attached to taskID.
func (r *Reminder) CloneFor(taskID uuid.UUID) *Reminder {
	return &Reminder{
		ID:       uuid.New(),
		TaskID:   taskID,
		LeadTime: r.LeadTime,
		Channels: append([]Channel(nil), r.Channels...),
	}
}
