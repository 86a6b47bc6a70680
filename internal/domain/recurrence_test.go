package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurrenceRuleValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rule    RecurrenceRule
		wantErr error
	}{
		{name: "daily", rule: RecurrenceRule{Pattern: PatternDaily, Interval: 1}},
		{name: "weekly", rule: RecurrenceRule{Pattern: PatternWeekly, Interval: 2, DaysOfWeek: []int{1, 3, 5}}},
		{name: "monthly", rule: RecurrenceRule{Pattern: PatternMonthly, Interval: 1, DayOfMonth: 31}},
		{name: "unknown pattern", rule: RecurrenceRule{Pattern: "yearly", Interval: 1}, wantErr: ErrInvalidPattern},
		{name: "zero interval", rule: RecurrenceRule{Pattern: PatternDaily}, wantErr: ErrInvalidInterval},
		{name: "daily with weekdays", rule: RecurrenceRule{Pattern: PatternDaily, Interval: 1, DaysOfWeek: []int{1}}, wantErr: ErrInvalidSelector},
		{name: "weekly without weekdays", rule: RecurrenceRule{Pattern: PatternWeekly, Interval: 1}, wantErr: ErrInvalidSelector},
		{name: "weekly with day of month", rule: RecurrenceRule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: []int{1}, DayOfMonth: 3}, wantErr: ErrInvalidSelector},
		{name: "weekday out of range", rule: RecurrenceRule{Pattern: PatternWeekly, Interval: 1, DaysOfWeek: []int{7}}, wantErr: ErrInvalidSelector},
		{name: "monthly without day", rule: RecurrenceRule{Pattern: PatternMonthly, Interval: 1}, wantErr: ErrInvalidSelector},
		{name: "monthly day 32", rule: RecurrenceRule{Pattern: PatternMonthly, Interval: 1, DayOfMonth: 32}, wantErr: ErrInvalidSelector},
		{name: "monthly with weekdays", rule: RecurrenceRule{Pattern: PatternMonthly, Interval: 1, DayOfMonth: 1, DaysOfWeek: []int{1}}, wantErr: ErrInvalidSelector},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.rule.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
		})
	}
}

func TestRecurrenceRuleCloneFor(t *testing.T) {
	t.Parallel()
	old := &RecurrenceRule{
		ID:         uuid.New(),
		TaskID:     uuid.New(),
		Pattern:    PatternWeekly,
		Interval:   1,
		DaysOfWeek: []int{1, 3, 5},
		Active:     false,
	}
	taskID := uuid.New()
	due := time.Date(2026, 1, 9, 9, 0, 0, 0, time.UTC)

	clone := old.CloneFor(taskID, due)

	assert.NotEqual(t, old.ID, clone.ID)
	assert.Equal(t, taskID, clone.TaskID)
	assert.True(t, clone.Active)
	assert.Equal(t, old.DaysOfWeek, clone.DaysOfWeek)
	require.NotNil(t, clone.NextDue)
	assert.True(t, due.Equal(*clone.NextDue))
}
