package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names. The wire event_type is the name followed by ".v<N>".
const (
	TaskCompleted          = "task.completed"
	TaskCreated            = "task.created"
	TaskRegenerationFailed = "task.regeneration_failed"
	ReminderDue            = "reminder.due"
	NotificationSent       = "notification.sent"
	NotificationFailed     = "notification.failed"
)

// CurrentVersion is the schema version stamped on every envelope this engine emits.
const CurrentVersion = 1

// Envelope is the versioned wrapper carrying an event's identity, type and payload.
type Envelope struct {
	// ID is the unique identifier of this event; it is the idempotency key.
	ID uuid.UUID `json:"event_id"`

	// Type is "<name>.v<N>", for example "task.completed.v1".
	Type string `json:"event_type"`

	// Timestamp is when the event was produced, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Data is the event payload serialized as JSON.
	Data json.RawMessage `json:"data"`

	// Key is the partition key (the owner id). It travels as transport
	// metadata and is never part of the serialized body.
	Key string `json:"-"`
}

// NewEnvelope creates a new Envelope for the named event carrying payload.
// The envelope gets a fresh ID, the current schema version and a UTC timestamp.
func NewEnvelope(name, key string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", name, err)
	}

	return &Envelope{
		ID:        uuid.New(),
		Type:      TypeString(name, CurrentVersion),
		Timestamp: time.Now().UTC(),
		Data:      data,
		Key:       key,
	}, nil
}

// TypeString formats an event name and major version as a wire event_type.
func TypeString(name string, version int) string {
	return fmt.Sprintf("%s.v%d", name, version)
}

// Name returns the event name without its version suffix.
func (e *Envelope) Name() string {
	name, _, err := parseType(e.Type)
	if err != nil {
		return e.Type
	}
	return name
}

// UnmarshalData decodes the event payload into the provided structure.
func (e *Envelope) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Marshal serializes the envelope body for the transport.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Handler defines an interface for components that consume events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returning an error asks the processor to retry; wrap it with Permanent
	// to skip retries.
	HandleEvent(ctx context.Context, env *Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *Envelope) error

// HandleEvent calls f(ctx, env).
func (f HandlerFunc) HandleEvent(ctx context.Context, env *Envelope) error {
	return f(ctx, env)
}

// Publisher defines an interface for components that can publish events.
// Implementations must preserve publish order among envelopes sharing a Key.
type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
}

// AckPublisher is a Publisher whose delivery completes asynchronously.
// done is called once with the processing result and is never called for a
// message dropped before processing.
type AckPublisher interface {
	Publisher
	PublishAck(ctx context.Context, env *Envelope, done func(error)) error
}
