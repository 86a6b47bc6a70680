package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/mocks"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/outbox"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/store"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/worker"
)

func newEnvelope(t *testing.T, key string) *events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(events.TaskCreated, key, events.TaskCreatedPayload{
		TaskID:    uuid.New(),
		OwnerID:   key,
		Title:     "Pay rent",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return env
}

func enqueue(t *testing.T, ms *mocks.MemoryStore, envs ...*events.Envelope) {
	t.Helper()
	for _, env := range envs {
		require.NoError(t, outbox.Enqueue(context.Background(), ms.OutboxStore(), env))
	}
}

func TestRelayFlushPublishesInOrder(t *testing.T) {
	ms := mocks.NewMemoryStore()
	pub := &mocks.RecordingPublisher{}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), pub, 10, time.Minute, nil)

	a, b, c := newEnvelope(t, "user-1"), newEnvelope(t, "user-2"), newEnvelope(t, "user-1")
	enqueue(t, ms, a, b, c)

	n, err := relay.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	got := pub.Envelopes()
	require.Len(t, got, 3)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "user-2", got[1].Key, "the partition key is restored from the row")

	pending, err := relay.Pending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestRelayFlushStopsAtFirstFailure(t *testing.T) {
	ms := mocks.NewMemoryStore()
	a, b := newEnvelope(t, "user-1"), newEnvelope(t, "user-1")
	enqueue(t, ms, a, b)

	calls := 0
	pub := &mocks.RecordingPublisher{PublishFn: func(env *events.Envelope) error {
		calls++
		if env.ID == a.ID && calls == 1 {
			return errors.New("broker unavailable")
		}
		return nil
	}}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), pub, 10, time.Minute, nil)

	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.Envelopes(), "b must not overtake a")

	msgs := ms.OutboxMessages()
	assert.Equal(t, 1, msgs[0].Attempts)
	assert.Equal(t, "broker unavailable", msgs[0].LastError)

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.Envelopes(), 2)
	assert.Equal(t, a.ID, pub.Envelopes()[0].ID)
}

func TestRelayDrainAcrossBatches(t *testing.T) {
	ms := mocks.NewMemoryStore()
	pub := &mocks.RecordingPublisher{}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), pub, 2, time.Minute, nil)
	for i := 0; i < 5; i++ {
		enqueue(t, ms, newEnvelope(t, "user-1"))
	}

	n, err := relay.Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, pub.Envelopes(), 5)
}

func TestRelayRetiresUnreadableRows(t *testing.T) {
	ms := mocks.NewMemoryStore()
	pub := &mocks.RecordingPublisher{}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), pub, 10, time.Minute, nil)

	require.NoError(t, ms.OutboxStore().Enqueue(context.Background(), &store.OutboxMessage{
		EventID: "broken", EventType: "task.created.v1", Key: "user-1", Payload: []byte("{not json"),
	}))
	good := newEnvelope(t, "user-1")
	enqueue(t, ms, good)

	n, err := relay.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.Envelopes(), 1)
	assert.Equal(t, good.ID, pub.Envelopes()[0].ID)
	assert.NotEmpty(t, ms.OutboxMessages()[0].LastError)
}

func TestRelayRunFlushesOnNotify(t *testing.T) {
	ms := mocks.NewMemoryStore()
	pub := &mocks.RecordingPublisher{}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), pub, 10, time.Hour, nil)
	p := outbox.NewPublisher(ms.OutboxStore(), relay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.NoError(t, p.Publish(ctx, newEnvelope(t, "user-1")))

	require.Eventually(t, func() bool { return len(pub.Envelopes()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestEnqueueRejectsDuplicateEventID(t *testing.T) {
	ms := mocks.NewMemoryStore()
	env := newEnvelope(t, "user-1")

	require.NoError(t, outbox.Enqueue(context.Background(), ms.OutboxStore(), env))
	err := outbox.Enqueue(context.Background(), ms.OutboxStore(), env)

	assert.ErrorIs(t, err, store.ErrDuplicate)
}

type countingProcessor struct {
	mu        sync.Mutex
	processed int
	block     bool
	started   chan struct{}
}

func (p *countingProcessor) Process(ctx context.Context, _ string, _ []byte) error {
	p.mu.Lock()
	block := p.block
	p.block = false
	p.mu.Unlock()
	if block {
		close(p.started)
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	p.processed++
	p.mu.Unlock()
	return nil
}

func TestRelayKeepsRowsDroppedAtShutdown(t *testing.T) {
	log, _ := logger.GetTestLogger(t)
	ms := mocks.NewMemoryStore()
	for i := 0; i < 5; i++ {
		enqueue(t, ms, newEnvelope(t, "user-1"))
	}

	pool := worker.NewKeyedPool(worker.Config{WorkerCount: 1, QueueSize: 10}, log)
	pool.Start()
	proc := &countingProcessor{block: true, started: make(chan struct{})}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), events.NewInMemoryBus(pool, proc, log), 10, time.Minute, log)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	<-proc.started

	pending, err := relay.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), pending, "rows stay pending until processed")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pool.Stop(ctx)

	pending, err = relay.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), pending, "dropped and cancelled rows are relayed again after restart")

	// A fresh process picks the rows up again.
	next := worker.NewKeyedPool(worker.Config{WorkerCount: 1, QueueSize: 10}, log)
	next.Start()
	t.Cleanup(func() { next.Stop(context.Background()) })
	proc2 := &countingProcessor{}
	relay2 := outbox.NewRelay(ms, ms.OutboxStore(), events.NewInMemoryBus(next, proc2, log), 10, time.Minute, log)

	n, err = relay2.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Eventually(t, func() bool {
		pending, err := relay2.Pending(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)

	proc2.mu.Lock()
	defer proc2.mu.Unlock()
	assert.Equal(t, 5, proc2.processed)
}

func TestRelaySkipsRowsAwaitingAck(t *testing.T) {
	log, _ := logger.GetTestLogger(t)
	ms := mocks.NewMemoryStore()
	enqueue(t, ms, newEnvelope(t, "user-1"), newEnvelope(t, "user-1"))

	pool := worker.NewKeyedPool(worker.Config{WorkerCount: 1, QueueSize: 10}, log)
	pool.Start()
	proc := &countingProcessor{block: true, started: make(chan struct{})}
	relay := outbox.NewRelay(ms, ms.OutboxStore(), events.NewInMemoryBus(pool, proc, log), 10, time.Minute, log)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	<-proc.started

	n, err = relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "rows already handed off are not published twice")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pool.Stop(ctx)
}
