package store

import "context"

// Stores groups the stores that take part in a single unit of work.
type Stores struct {
	Tasks     TaskStore
	Rules     RuleStore
	Reminders ReminderStore
	Outbox    OutboxStore
}

// Transactor runs fn with Stores bound to one transaction. The transaction
// commits if fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
