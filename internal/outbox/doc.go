// Package outbox moves events from the outbox table onto the bus.
//
// Producers never publish directly. They write the serialized envelope to
// the outbox inside the transaction that changes state, and the Relay
// publishes pending rows in insertion order afterwards. A row is marked
// published only after the bus accepted it, so delivery is at least once.
package outbox
