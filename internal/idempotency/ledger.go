package idempotency

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate reports that an event was already claimed by the consumer
// group. Consumers treat it as success and acknowledge the message.
var ErrDuplicate = errors.New("event already processed")

// Consumer groups that claim events.
const (
	GroupDispatcher  = "notification-dispatcher"
	GroupRegenerator = "recurring-task-service"
)

// Ledger records which events each consumer group has processed.
type Ledger interface {
	// TryClaim atomically records (eventKey, group). It returns true if this
	// call created the record and false if it already existed.
	TryClaim(ctx context.Context, eventKey, group string) (bool, error)

	// Release deletes the claim so that a redelivery can process the event
	// again. It is called only when the unit of work failed before any
	// externally visible side effect completed.
	Release(ctx context.Context, eventKey, group string) error

	// Purge removes claims recorded before the given time and returns how
	// many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Claim calls TryClaim and converts a denied claim into ErrDuplicate.
func Claim(ctx context.Context, l Ledger, eventKey, group string) error {
	claimed, err := l.TryClaim(ctx, eventKey, group)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrDuplicate
	}
	return nil
}
