// Package events provides the event envelope, its schema validation and the
// plumbing that moves envelopes between producers and consumers.
//
// The primary components are:
// - Envelope: the versioned wrapper carrying an event's identity, type and payload
// - Decode: parses and validates a serialized envelope, rejecting with *SchemaError
// - Processor: routes a message to its handlers with bounded retry and dead-lettering
// - InMemoryBus: a single-process Publisher with per-key ordering
package events
