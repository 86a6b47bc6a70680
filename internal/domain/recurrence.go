package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pattern is the unit in which a recurrence advances.
type Pattern string

// Supported recurrence patterns.
const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

// IsValid reports whether p is a known pattern.
func (p Pattern) IsValid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return true
	default:
		return false
	}
}

// RecurrenceRule describes how a task repeats. DaysOfWeek uses time.Weekday
// numbering (0 = Sunday). DayOfMonth is 0 when unset.
type RecurrenceRule struct {
	ID         uuid.UUID  `json:"id"`
	TaskID     uuid.UUID  `json:"task_id"`
	Pattern    Pattern    `json:"pattern"`
	Interval   int        `json:"interval"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	DayOfMonth int        `json:"day_of_month,omitempty"`
	NextDue    *time.Time `json:"next_due,omitempty"`
	Active     bool       `json:"active"`
}

// Validate enforces the selector invariant: weekly rules carry a non-empty
// set of weekdays and no day of month, monthly rules carry a day of month and
// no weekdays, and daily rules carry neither.
func (r *RecurrenceRule) Validate() error {
	if !r.Pattern.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, r.Pattern)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}

	switch r.Pattern {
	case PatternDaily:
		if len(r.DaysOfWeek) > 0 || r.DayOfMonth != 0 {
			return fmt.Errorf("%w: daily rules take no day selectors", ErrInvalidSelector)
		}
	case PatternWeekly:
		if r.DayOfMonth != 0 {
			return fmt.Errorf("%w: weekly rules take no day of month", ErrInvalidSelector)
		}
		if len(r.DaysOfWeek) == 0 {
			return fmt.Errorf("%w: weekly rules need at least one weekday", ErrInvalidSelector)
		}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidSelector, d)
			}
		}
	case PatternMonthly:
		if len(r.DaysOfWeek) > 0 {
			return fmt.Errorf("%w: monthly rules take no weekdays", ErrInvalidSelector)
		}
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidSelector, r.DayOfMonth)
		}
	}
	return nil
}

// CloneFor returns an active copy of r attached to taskID with the given
// next due time.
func (r *RecurrenceRule) CloneFor(taskID uuid.UUID, nextDue time.Time) *RecurrenceRule {
	due := nextDue.UTC()
	var days []int
	if len(r.DaysOfWeek) > 0 {
		days = append([]int(nil), r.DaysOfWeek...)
	}
	return &RecurrenceRule{
		ID:         uuid.New(),
		TaskID:     taskID,
		Pattern:    r.Pattern,
		Interval:   r.Interval,
		DaysOfWeek: days,
		DayOfMonth: r.DayOfMonth,
		NextDue:    &due,
		Active:     true,
	}
}
