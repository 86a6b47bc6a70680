package recurrence

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
)

// ErrNilRule is wrapped by a ComputationError when no rule is supplied.
var ErrNilRule = errors.New("recurrence rule cannot be nil")

// Calculator defines the interface for recurrence arithmetic.
type Calculator interface {
	// NextOccurrence returns the first occurrence of rule strictly after from.
	NextOccurrence(rule *domain.RecurrenceRule, from time.Time) (time.Time, error)
}

type defaultCalculator struct{}

// NewCalculator returns the standard Calculator.
func NewCalculator() Calculator {
	return defaultCalculator{}
}

func (defaultCalculator) NextOccurrence(rule *domain.RecurrenceRule, from time.Time) (time.Time, error) {
	return NextOccurrence(rule, from)
}

// NextOccurrence returns the first occurrence of rule strictly after from.
//
// Daily rules advance by Interval days. Weekly rules pick the earliest day on
// or after from+1 day whose weekday is selected; when that day falls in a
// later Sunday-started week than from, a further Interval-1 weeks are added.
// Monthly rules land on DayOfMonth Interval months ahead, clamped to the last
// day of that month.
func NextOccurrence(rule *domain.RecurrenceRule, from time.Time) (time.Time, error) {
	if rule == nil {
		return time.Time{}, &ComputationError{RuleID: uuid.Nil, Err: ErrNilRule}
	}
	if err := rule.Validate(); err != nil {
		return time.Time{}, &ComputationError{RuleID: rule.ID, Err: err}
	}

	from = from.UTC()
	switch rule.Pattern {
	case domain.PatternDaily:
		return from.AddDate(0, 0, rule.Interval), nil
	case domain.PatternWeekly:
		return nextWeekly(from, rule.DaysOfWeek, rule.Interval), nil
	default:
		return nextMonthly(from, rule.DayOfMonth, rule.Interval), nil
	}
}

func nextWeekly(from time.Time, days []int, interval int) time.Time {
	var selected [7]bool
	for _, d := range days {
		selected[d] = true
	}

	candidate := from.AddDate(0, 0, 1)
	for !selected[candidate.Weekday()] {
		candidate = candidate.AddDate(0, 0, 1)
	}

	if weekStart(candidate).After(weekStart(from)) {
		candidate = candidate.AddDate(0, 0, 7*(interval-1))
	}
	return candidate
}

// weekStart returns midnight of the Sunday that begins t's week.
func weekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, time.UTC)
}

func nextMonthly(from time.Time, dayOfMonth, interval int) time.Time {
	h, mi, s := from.Clock()
	// Day 1 never overflows, so the month arithmetic is exact.
	first := time.Date(from.Year(), from.Month()+time.Month(interval), 1, h, mi, s, from.Nanosecond(), time.UTC)
	day := dayOfMonth
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
