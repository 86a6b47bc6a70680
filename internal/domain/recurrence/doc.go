// Package recurrence computes the next occurrence of a recurring task.
//
// All arithmetic is performed in UTC and is pure: the same rule and anchor
// always produce the same result. The time of day of the anchor is preserved.
package recurrence
