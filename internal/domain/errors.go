// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the engine.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyOwner is returned when an entity has no owner.
	ErrEmptyOwner = errors.New("owner ID cannot be empty")

	// ErrEmptyTitle is returned when a task has no title.
	ErrEmptyTitle = errors.New("task title cannot be empty")

	// ErrCompletionMismatch is returned when completed and completed_at disagree.
	ErrCompletionMismatch = errors.New("completed_at must be set if and only if the task is completed")

	// ErrInvalidPattern is returned when a recurrence pattern is unknown.
	ErrInvalidPattern = errors.New("invalid recurrence pattern")

	// ErrInvalidInterval is returned when a recurrence interval is not positive.
	ErrInvalidInterval = errors.New("recurrence interval must be positive")

	// ErrInvalidSelector is returned when a recurrence rule's day selectors do
	// not match its pattern.
	ErrInvalidSelector = errors.New("invalid recurrence day selector")

	// ErrInvalidChannel is returned when a reminder names an unknown channel.
	ErrInvalidChannel = errors.New("invalid notification channel")

	// ErrNoChannels is returned when a reminder has no delivery channels.
	ErrNoChannels = errors.New("reminder must have at least one channel")

	// ErrNegativeLeadTime is returned when a reminder lead time is negative.
	ErrNegativeLeadTime = errors.New("reminder lead time cannot be negative")
)
