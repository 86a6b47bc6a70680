package outbox

import (
	"context"
	"fmt"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Enqueue serializes env and appends it to s. Call it with an OutboxStore
// bound to the transaction that produced the event.
func Enqueue(ctx context.Context, s store.OutboxStore, env *events.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", env.ID, err)
	}
	if err := s.Enqueue(ctx, &store.OutboxMessage{
		EventID:   env.ID.String(),
		EventType: env.Type,
		Key:       env.Key,
		Payload:   raw,
	}); err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", env.ID, err)
	}
	return nil
}

// Publisher is an events.Publisher that writes to the outbox outside of any
// caller transaction. Each Publish is its own unit of work.
type Publisher struct {
	store store.OutboxStore
	relay *Relay
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher. If relay is non-nil it is nudged after
// every enqueue.
func NewPublisher(s store.OutboxStore, relay *Relay) *Publisher {
	return &Publisher{store: s, relay: relay}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, env *events.Envelope) error {
	if err := Enqueue(ctx, p.store, env); err != nil {
		return err
	}
	if p.relay != nil {
		p.relay.Notify()
	}
	return nil
}
