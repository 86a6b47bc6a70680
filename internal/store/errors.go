package store

import (
	"errors"
	"fmt"
)

// Errors returned by every store implementation. Backend errors are mapped
// onto these so callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate uniqueness, for
	// example a second recurrence rule for one task.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before it
	// is stored or is rejected by a database constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	ErrTaskNotFound          = fmt.Errorf("%w: task", ErrNotFound)
	ErrRuleNotFound          = fmt.Errorf("%w: recurrence rule", ErrNotFound)
	ErrContactNotFound       = fmt.Errorf("%w: contact", ErrNotFound)
	ErrOutboxMessageNotFound = fmt.Errorf("%w: outbox message", ErrNotFound)
)
