package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
)

// Relay publishes pending outbox rows to the bus.
type Relay struct {
	tx        store.Transactor
	outbox    store.OutboxStore
	publisher events.Publisher
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	wake      chan struct{}

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewRelay creates a Relay. outbox is used outside transactions for
// read-only status queries.
func NewRelay(
	tx store.Transactor,
	outbox store.OutboxStore,
	publisher events.Publisher,
	batchSize int,
	interval time.Duration,
	logger *slog.Logger,
) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		tx:        tx,
		outbox:    outbox,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger.With(slog.String("component", "outbox_relay")),
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		inFlight:  make(map[int64]struct{}),
	}
}

// Notify asks a running relay to flush without waiting for the next
// interval. It never blocks.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run flushes on every interval and on Notify until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("outbox flush failed, retrying next interval", slog.String("error", err.Error()))
		}
	}
}

// Drain flushes batches until the outbox is empty or a flush fails.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.Flush(ctx)
		total += n
		if err != nil || n < r.batchSize {
			return total, err
		}
	}
}

// Flush publishes one batch of pending rows in insertion order and returns
// how many were published. It stops at the first publish failure so that a
// later event of the same key never overtakes an earlier one. If another
// relay holds the lock Flush returns 0 and nil.
//
// When the publisher is an events.AckPublisher, rows are handed off after the
// transaction commits and marked published only once processing succeeds. A
// message dropped before processing leaves its row pending, so it is relayed
// again by the next process to run the relay.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	if ack, ok := r.publisher.(events.AckPublisher); ok {
		return r.flushAck(ctx, ack)
	}
	return r.flushSync(ctx)
}

func (r *Relay) flushSync(ctx context.Context) (int, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)
	published := 0
	var publishErr error

	err := r.tx.InTx(ctx, func(ctx context.Context, s store.Stores) error {
		msgs, err := r.fetch(ctx, s, r.batchSize, nil)
		if err != nil {
			return err
		}

		for _, p := range msgs {
			if err := r.publisher.Publish(ctx, p.env); err != nil {
				publishErr = fmt.Errorf("failed to publish outbox row %d: %w", p.id, err)
				return s.Outbox.MarkFailed(ctx, p.id, err.Error())
			}
			if err := s.Outbox.MarkPublished(ctx, p.id, r.now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("outbox flush failed: %w", err)
	}

	if published > 0 {
		log.Debug("relayed outbox events", slog.Int("count", published))
	}
	return published, publishErr
}

func (r *Relay) flushAck(ctx context.Context, ack events.AckPublisher) (int, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	r.mu.Lock()
	skip := make(map[int64]struct{}, len(r.inFlight))
	for id := range r.inFlight {
		skip[id] = struct{}{}
	}
	r.mu.Unlock()

	var batch []pendingEvent
	err := r.tx.InTx(ctx, func(ctx context.Context, s store.Stores) error {
		msgs, err := r.fetch(ctx, s, r.batchSize+len(skip), skip)
		if err != nil {
			return err
		}
		if len(msgs) > r.batchSize {
			msgs = msgs[:r.batchSize]
		}
		batch = msgs
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("outbox flush failed: %w", err)
	}

	dispatched := 0
	for _, p := range batch {
		p := p
		id := p.id
		if !r.track(id) {
			continue
		}
		err := ack.PublishAck(ctx, p.env, func(err error) { r.settle(id, p.env.ID.String(), err) })
		if err != nil {
			r.untrack(id)
			if markErr := r.outbox.MarkFailed(context.Background(), id, err.Error()); markErr != nil {
				log.Error("failed to record outbox publish failure",
					slog.Int64("outbox_id", id),
					slog.String("error", markErr.Error()))
			}
			return dispatched, fmt.Errorf("failed to publish outbox row %d: %w", id, err)
		}
		dispatched++
	}

	if dispatched > 0 {
		log.Debug("handed off outbox events", slog.Int("count", dispatched))
	}
	return dispatched, nil
}

// settle records the processing outcome of an acknowledged row. A failed row
// is released before the relay is woken so the next flush picks it up.
func (r *Relay) settle(id int64, eventID string, procErr error) {
	ctx := context.Background()

	if procErr != nil {
		r.logger.Warn("outbox event processing failed, will relay again",
			slog.Int64("outbox_id", id),
			slog.String("event_id", eventID),
			slog.String("error", procErr.Error()))
		if err := r.outbox.MarkFailed(ctx, id, procErr.Error()); err != nil {
			r.logger.Error("failed to record outbox processing failure",
				slog.Int64("outbox_id", id),
				slog.String("error", err.Error()))
		}
		r.untrack(id)
		r.Notify()
		return
	}

	if err := r.outbox.MarkPublished(ctx, id, r.now()); err != nil {
		r.logger.Error("failed to mark outbox row published",
			slog.Int64("outbox_id", id),
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
	r.untrack(id)
}

func (r *Relay) track(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[id]; ok {
		return false
	}
	r.inFlight[id] = struct{}{}
	return true
}

func (r *Relay) untrack(id int64) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

type pendingEvent struct {
	id  int64
	env *events.Envelope
}

// fetch locks the relay and reads up to limit pending rows, skipping ids in
// skip. Unreadable rows are retired in place.
func (r *Relay) fetch(ctx context.Context, s store.Stores, limit int, skip map[int64]struct{}) ([]pendingEvent, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	locked, err := s.Outbox.TryLockRelay(ctx)
	if err != nil {
		return nil, err
	}
	if !locked {
		log.Debug("another relay holds the outbox lock")
		return nil, nil
	}

	msgs, err := s.Outbox.FetchPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]pendingEvent, 0, len(msgs))
	for _, msg := range msgs {
		if _, ok := skip[msg.ID]; ok {
			continue
		}
		var env events.Envelope
		if err := json.Unmarshal(msg.Payload, &env); err != nil {
			// Unparseable rows are retired so later rows can flow.
			log.Error("dropping unreadable outbox row",
				slog.Int64("outbox_id", msg.ID),
				slog.String("event_id", msg.EventID),
				slog.String("error", err.Error()))
			if err := s.Outbox.MarkFailed(ctx, msg.ID, err.Error()); err != nil {
				return nil, err
			}
			if err := s.Outbox.MarkPublished(ctx, msg.ID, r.now()); err != nil {
				return nil, err
			}
			continue
		}
		env.Key = msg.Key
		out = append(out, pendingEvent{id: msg.ID, env: &env})
	}
	return out, nil
}

// Pending returns the number of unpublished rows.
func (r *Relay) Pending(ctx context.Context) (int64, error) {
	return r.outbox.CountPending(ctx)
}
