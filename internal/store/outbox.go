package store

import (
	"context"
	"database/sql"
	"time"
)

// OutboxMessage is an event envelope written in the same transaction as the
// state change it announces, waiting to be relayed to the bus.
type OutboxMessage struct {
	ID          int64
	EventID     string
	EventType   string
	Key         string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
	Attempts    int
	LastError   string
}

// OutboxStore defines the interface for outbox persistence.
type OutboxStore interface {
	// Enqueue appends msg. The store assigns ID and CreatedAt.
	Enqueue(ctx context.Context, msg *OutboxMessage) error

	// FetchPending returns up to limit unpublished messages in insertion
	// order, locking them against concurrent relays.
	FetchPending(ctx context.Context, limit int) ([]*OutboxMessage, error)

	// MarkPublished stamps message id as published at the given time.
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	// MarkFailed increments the attempt counter of message id and records
	// the error that stopped it.
	MarkFailed(ctx context.Context, id int64, reason string) error

	// TryLockRelay takes a transaction-scoped lock that serializes relays
	// across replicas. It returns false if another relay holds it. Only
	// meaningful on a store bound to a transaction.
	TryLockRelay(ctx context.Context) (bool, error)

	// CountPending returns the number of unpublished messages.
	CountPending(ctx context.Context) (int64, error)

	// WithTx returns an OutboxStore bound to tx.
	WithTx(tx *sql.Tx) OutboxStore
}
