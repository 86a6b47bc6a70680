package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
)

// Message is one notification bound for one destination.
type Message struct {
	NotificationID uuid.UUID
	EventID        uuid.UUID
	ReminderID     uuid.UUID
	TaskID         uuid.UUID
	OwnerID        string
	Channel        domain.Channel
	Destination    string
	TaskTitle      string
	DueAt          time.Time
	LeadTime       time.Duration
}

// Text renders the human-readable notification text.
func (m Message) Text() string {
	return fmt.Sprintf("Reminder: %q is due at %s", m.TaskTitle, m.DueAt.UTC().Format(time.RFC3339))
}

// Subject renders a short subject line.
func (m Message) Subject() string {
	return "Reminder: " + m.TaskTitle
}

// Kind classifies a delivery attempt.
type Kind int

const (
	// KindDelivered means the provider accepted the notification.
	KindDelivered Kind = iota
	// KindTransient means the attempt failed but may succeed if retried.
	KindTransient
	// KindPermanent means retrying cannot help.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindDelivered:
		return "delivered"
	case KindTransient:
		return "transient_failure"
	case KindPermanent:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// TransientError wraps a failure that is worth retrying.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Outcome is the result of one Send.
type Outcome struct {
	Kind Kind
	Err  error
}

// Delivered returns a successful outcome.
func Delivered() Outcome { return Outcome{Kind: KindDelivered} }

// Transient returns a retryable failure.
func Transient(err error) Outcome {
	return Outcome{Kind: KindTransient, Err: &TransientError{Err: err}}
}

// Permanent returns a non-retryable failure.
func Permanent(err error) Outcome {
	return Outcome{Kind: KindPermanent, Err: &PermanentError{Err: err}}
}

// FromError classifies err: nil is delivered, a *PermanentError anywhere in
// the chain is permanent, and everything else is transient.
func FromError(err error) Outcome {
	if err == nil {
		return Delivered()
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return Outcome{Kind: KindPermanent, Err: err}
	}
	return Transient(err)
}

// Channel delivers messages over one medium.
type Channel interface {
	Name() domain.Channel
	Send(ctx context.Context, msg Message) Outcome
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc struct {
	Channel domain.Channel
	SendFn  func(ctx context.Context, msg Message) Outcome
}

// Name implements Channel.
func (c ChannelFunc) Name() domain.Channel { return c.Channel }

// Send implements Channel.
func (c ChannelFunc) Send(ctx context.Context, msg Message) Outcome { return c.SendFn(ctx, msg) }
