// Package idempotency defines the ledger that makes at-least-once delivery
// safe: a consumer claims an event key once per consumer group before
// performing side effects, and a claim that already exists means the event
// was handled before.
package idempotency
