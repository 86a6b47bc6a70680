package idempotency

import (
	"context"
	"sync"
	"time"
)

type claimKey struct {
	eventKey string
	group    string
}

// MemoryLedger is a process-local Ledger for the single-node in-memory bus
// and for tests.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[claimKey]time.Time
	now     func() time.Time
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[claimKey]time.Time), now: time.Now}
}

func (l *MemoryLedger) TryClaim(_ context.Context, eventKey, group string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := claimKey{eventKey, group}
	if _, ok := l.entries[k]; ok {
		return false, nil
	}
	l.entries[k] = l.now().UTC()
	return true, nil
}

func (l *MemoryLedger) Release(_ context.Context, eventKey, group string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, claimKey{eventKey, group})
	return nil
}

func (l *MemoryLedger) Purge(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, at := range l.entries {
		if at.Before(before) {
			delete(l.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live claims.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
