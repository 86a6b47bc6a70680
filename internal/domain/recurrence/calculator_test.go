package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
)

func date(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func TestNextOccurrenceDaily(t *testing.T) {
	t.Parallel()
	rule := &domain.RecurrenceRule{Pattern: domain.PatternDaily, Interval: 3}

	got, err := NextOccurrence(rule, date(2026, 1, 30, 8, 15))

	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 2, 8, 15), got)
}

func TestNextOccurrenceWeekly(t *testing.T) {
	t.Parallel()

	// 2026-01-05 is a Monday.
	testCases := []struct {
		name     string
		days     []int
		interval int
		from     time.Time
		want     time.Time
	}{
		{
			name:     "wednesday to friday same week",
			days:     []int{1, 3, 5},
			interval: 1,
			from:     date(2026, 1, 7, 9, 0),
			want:     date(2026, 1, 9, 9, 0),
		},
		{
			name:     "friday wraps to monday",
			days:     []int{1, 3, 5},
			interval: 1,
			from:     date(2026, 1, 9, 9, 0),
			want:     date(2026, 1, 12, 9, 0),
		},
		{
			name:     "single day is a full week later",
			days:     []int{2},
			interval: 1,
			from:     date(2026, 1, 6, 7, 0),
			want:     date(2026, 1, 13, 7, 0),
		},
		{
			name:     "interval applies only when crossing a week",
			days:     []int{1, 3},
			interval: 2,
			from:     date(2026, 1, 5, 10, 0),
			want:     date(2026, 1, 7, 10, 0),
		},
		{
			name:     "biweekly crosses into next period",
			days:     []int{1, 3},
			interval: 2,
			from:     date(2026, 1, 7, 10, 0),
			want:     date(2026, 1, 19, 10, 0),
		},
		{
			name:     "saturday to sunday starts a new week",
			days:     []int{0},
			interval: 3,
			from:     date(2026, 1, 10, 6, 0),
			want:     date(2026, 1, 25, 6, 0),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rule := &domain.RecurrenceRule{Pattern: domain.PatternWeekly, Interval: tc.interval, DaysOfWeek: tc.days}
			got, err := NextOccurrence(rule, tc.from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// Every anchor across several weeks yields the nearest later date whose
// weekday is Monday, Thursday or Saturday.
func TestNextOccurrenceWeeklyNearestSelectedDay(t *testing.T) {
	t.Parallel()
	selected := map[time.Weekday]bool{time.Monday: true, time.Thursday: true, time.Saturday: true}
	rule := &domain.RecurrenceRule{
		Pattern:    domain.PatternWeekly,
		Interval:   1,
		DaysOfWeek: []int{int(time.Monday), int(time.Thursday), int(time.Saturday)},
	}

	start := date(2025, 12, 20, 13, 45)
	for i := 0; i < 60; i++ {
		from := start.AddDate(0, 0, i)
		got, err := NextOccurrence(rule, from)
		require.NoError(t, err)

		require.True(t, got.After(from), "result must be strictly after %s", from)
		require.True(t, selected[got.Weekday()], "weekday %s not selected", got.Weekday())
		for d := from.AddDate(0, 0, 1); d.Before(got); d = d.AddDate(0, 0, 1) {
			require.False(t, selected[d.Weekday()], "skipped nearer date %s from %s", d, from)
		}
		h, m, _ := got.Clock()
		assert.Equal(t, 13, h)
		assert.Equal(t, 45, m)
	}
}

func TestNextOccurrenceMonthly(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		day      int
		interval int
		from     time.Time
		want     time.Time
	}{
		{name: "jan 31 clamps to feb 28", day: 31, interval: 1, from: date(2026, 1, 31, 9, 0), want: date(2026, 2, 28, 9, 0)},
		{name: "jan 31 clamps to feb 29 in leap year", day: 31, interval: 1, from: date(2028, 1, 31, 9, 0), want: date(2028, 2, 29, 9, 0)},
		{name: "clamped feb returns to 31 in march", day: 31, interval: 1, from: date(2026, 2, 28, 9, 0), want: date(2026, 3, 31, 9, 0)},
		{name: "quarterly crosses year", day: 15, interval: 3, from: date(2026, 11, 15, 0, 0), want: date(2027, 2, 15, 0, 0)},
		{name: "30th into april", day: 30, interval: 2, from: date(2026, 2, 28, 18, 30), want: date(2026, 4, 30, 18, 30)},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rule := &domain.RecurrenceRule{Pattern: domain.PatternMonthly, Interval: tc.interval, DayOfMonth: tc.day}
			got, err := NextOccurrence(rule, tc.from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNextOccurrenceNormalizesToUTC(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+5", 5*60*60)
	rule := &domain.RecurrenceRule{Pattern: domain.PatternDaily, Interval: 1}

	got, err := NextOccurrence(rule, time.Date(2026, 1, 1, 2, 0, 0, 0, loc))

	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, date(2026, 1, 1, 21, 0), got)
}

func TestNextOccurrenceInvalidRule(t *testing.T) {
	t.Parallel()
	ruleID := uuid.New()

	testCases := []struct {
		name    string
		rule    *domain.RecurrenceRule
		wantErr error
	}{
		{name: "nil rule", rule: nil, wantErr: ErrNilRule},
		{name: "empty weekly set", rule: &domain.RecurrenceRule{ID: ruleID, Pattern: domain.PatternWeekly, Interval: 1}, wantErr: domain.ErrInvalidSelector},
		{name: "zero interval", rule: &domain.RecurrenceRule{ID: ruleID, Pattern: domain.PatternDaily}, wantErr: domain.ErrInvalidInterval},
		{name: "unknown pattern", rule: &domain.RecurrenceRule{ID: ruleID, Pattern: "hourly", Interval: 1}, wantErr: domain.ErrInvalidPattern},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCalculator().NextOccurrence(tc.rule, date(2026, 1, 1, 0, 0))

			var compErr *ComputationError
			require.True(t, errors.As(err, &compErr), "expected ComputationError, got %T", err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
