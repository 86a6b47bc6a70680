package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sosodev/duration"
)

// SchemaError reports an envelope that is malformed or incompatible with
// this engine. It is never retried; callers route it to the dead-letter sink.
type SchemaError struct {
	EventID   string
	EventType string
	Reason    string
	Err       error
}

func (e *SchemaError) Error() string {
	msg := "schema error"
	if e.EventType != "" {
		msg += " in " + e.EventType
	}
	if e.EventID != "" {
		msg += " (event " + e.EventID + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

var typePattern = regexp.MustCompile(`^([a-z][a-z_]*(?:\.[a-z][a-z_]*)+)\.v([1-9][0-9]*)$`)

func parseType(t string) (string, int, error) {
	m := typePattern.FindStringSubmatch(t)
	if m == nil {
		return "", 0, fmt.Errorf("event_type %q does not match <name>.v<N>", t)
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("event_type %q has an invalid version: %w", t, err)
	}
	return m[1], v, nil
}

// schema describes one registered event: the major versions this engine can
// read and a constructor for its payload type.
type schema struct {
	versions   map[int]bool
	newPayload func() interface{}
}

var registry = map[string]schema{
	TaskCompleted:          {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &TaskCompletedPayload{} }},
	TaskCreated:            {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &TaskCreatedPayload{} }},
	TaskRegenerationFailed: {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &TaskRegenerationFailedPayload{} }},
	ReminderDue:            {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &ReminderDuePayload{} }},
	NotificationSent:       {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &NotificationSentPayload{} }},
	NotificationFailed:     {versions: map[int]bool{1: true}, newPayload: func() interface{} { return &NotificationFailedPayload{} }},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("iso8601_duration", func(fl validator.FieldLevel) bool {
		_, err := duration.Parse(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("events: register iso8601_duration: %v", err))
	}
	return v
}

// rawEnvelope keeps every field optional so that missing fields can be told
// apart from zero values.
type rawEnvelope struct {
	EventID   *string         `json:"event_id"`
	EventType *string         `json:"event_type"`
	Timestamp *string         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode parses and validates a serialized envelope. Every rejection is a
// *SchemaError: malformed JSON, missing fields, a malformed event_id or
// event_type, an unknown event name, an unsupported major version, or a
// payload that fails structural validation.
func Decode(raw []byte) (*Envelope, error) {
	var r rawEnvelope
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, &SchemaError{Reason: "malformed envelope", Err: err}
	}

	if r.EventID == nil || *r.EventID == "" {
		return nil, &SchemaError{Reason: "missing event_id"}
	}
	id, err := uuid.Parse(*r.EventID)
	if err != nil {
		return nil, &SchemaError{EventID: *r.EventID, Reason: "event_id is not a UUID", Err: err}
	}

	se := func(eventType, reason string, err error) *SchemaError {
		return &SchemaError{EventID: id.String(), EventType: eventType, Reason: reason, Err: err}
	}

	if r.EventType == nil || *r.EventType == "" {
		return nil, se("", "missing event_type", nil)
	}
	eventType := *r.EventType
	name, version, err := parseType(eventType)
	if err != nil {
		return nil, se(eventType, "malformed event_type", err)
	}
	s, ok := registry[name]
	if !ok {
		return nil, se(eventType, "unknown event name "+name, nil)
	}
	if !s.versions[version] {
		return nil, se(eventType, fmt.Sprintf("unsupported version %d", version), nil)
	}

	if r.Timestamp == nil || *r.Timestamp == "" {
		return nil, se(eventType, "missing timestamp", nil)
	}
	ts, err := time.Parse(time.RFC3339Nano, *r.Timestamp)
	if err != nil {
		return nil, se(eventType, "timestamp is not RFC 3339", err)
	}

	if len(r.Data) == 0 || bytes.Equal(bytes.TrimSpace(r.Data), []byte("null")) {
		return nil, se(eventType, "missing data", nil)
	}
	payload := s.newPayload()
	if err := json.Unmarshal(r.Data, payload); err != nil {
		return nil, se(eventType, "malformed data", err)
	}
	if err := validate.Struct(payload); err != nil {
		return nil, se(eventType, "invalid data", err)
	}

	return &Envelope{
		ID:        id,
		Type:      eventType,
		Timestamp: ts.UTC(),
		Data:      r.Data,
	}, nil
}
