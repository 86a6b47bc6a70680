package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/worker"
)

// MessageProcessor consumes one serialized message. *Processor implements it.
type MessageProcessor interface {
	Process(ctx context.Context, key string, raw []byte) error
}

// InMemoryBus is a Publisher that delivers envelopes to a processor through
// a keyed worker pool, giving per-key ordering within a single process.
type InMemoryBus struct {
	pool      *worker.KeyedPool
	processor MessageProcessor
	logger    *slog.Logger
}

// NewInMemoryBus creates a new instance of InMemoryBus. The pool must be
// started by the caller.
func NewInMemoryBus(pool *worker.KeyedPool, processor MessageProcessor, logger *slog.Logger) *InMemoryBus {
	return &InMemoryBus{
		pool:      pool,
		processor: processor,
		logger:    logger.With("component", "in_memory_bus"),
	}
}

var _ AckPublisher = (*InMemoryBus)(nil)

// Publish serializes env and queues it under env.Key. The envelope is
// serialized up front so handlers see exactly what a network transport would
// deliver.
func (b *InMemoryBus) Publish(ctx context.Context, env *Envelope) error {
	return b.PublishAck(ctx, env, nil)
}

// PublishAck behaves like Publish and calls done with the processing result
// once the worker has handled env. done is not called when the pool drops
// the job on shutdown.
func (b *InMemoryBus) PublishAck(ctx context.Context, env *Envelope, done func(error)) error {
	raw, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope %s: %w", env.ID, err)
	}

	key := env.Key
	if err := b.pool.Submit(ctx, key, func(ctx context.Context) error {
		err := b.processor.Process(ctx, key, raw)
		if done != nil {
			done(err)
		}
		return err
	}); err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", env.ID, err)
	}

	b.logger.Debug("event queued",
		"event_id", env.ID,
		"event_type", env.Type,
		"key", key)
	return nil
}
