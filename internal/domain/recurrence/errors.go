package recurrence

import (
	"fmt"

	"github.com/google/uuid"
)

// ComputationError reports that a next occurrence could not be computed,
// usually because the stored rule is invalid. Callers must not retry it.
type ComputationError struct {
	RuleID uuid.UUID
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("recurrence computation failed for rule %s: %v", e.RuleID, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
