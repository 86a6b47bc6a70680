// Package mocks provides in-memory test doubles shared across packages.
//
// MemoryStore implements store.Transactor together with every store the
// engine uses. Units of work are serialized and a failing unit is rolled
// back by restoring a snapshot, so tests observe the same all-or-nothing
// behavior as the PostgreSQL transactor:
//
//	ms := mocks.NewMemoryStore()
//	ms.Seed(task, rule, reminder)
//	ms.EnqueueFn = func(*store.OutboxMessage) error { return errors.New("down") }
//
// RecordingPublisher captures published envelopes for assertions.
package mocks
