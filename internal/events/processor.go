package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
)

// DeadLetter is an event that will not be processed again.
type DeadLetter struct {
	EventID   string
	EventType string
	Key       string
	Payload   []byte
	Reason    string
	Attempts  int
	FailedAt  time.Time
}

// DeadLetterSink is the terminal destination for events that fail schema
// validation or exhaust their retries.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl DeadLetter) error
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The processor dead-letters the
// event on the first attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// FailureReporter is implemented by handlers that publish their own failure
// event once the processor gives up on an event. The report is made before
// the event is dead-lettered.
type FailureReporter interface {
	ReportFailure(ctx context.Context, env *Envelope, cause error) error
}

// Router maps event names to the handlers subscribed to them.
type Router struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string][]Handler)}
}

// Subscribe registers h for every version of the named event.
func (r *Router) Subscribe(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], h)
}

// Handlers returns the handlers subscribed to name.
func (r *Router) Handlers(name string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.handlers[name]...)
}

// RetryPolicy bounds handler retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.BaseDelay)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.WithMaxRetries(uint64(attempts-1), b)
}

// Processor turns a serialized message into handler invocations: it decodes
// the envelope, routes it by event name, retries failing handlers within the
// policy and dead-letters what cannot be processed.
type Processor struct {
	router *Router
	sink   DeadLetterSink
	policy RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a Processor.
func NewProcessor(router *Router, sink DeadLetterSink, policy RetryPolicy, logger *slog.Logger) *Processor {
	return &Processor{
		router: router,
		sink:   sink,
		policy: policy,
		logger: logger.With("component", "event_processor"),
		now:    time.Now,
	}
}

// Process handles one message. It returns nil once the message is either
// handled, ignored, or dead-lettered; a non-nil error means the message must
// not be acknowledged (the dead-letter write failed or ctx was cancelled).
func (p *Processor) Process(ctx context.Context, key string, raw []byte) error {
	env, err := Decode(raw)
	if err != nil {
		var se *SchemaError
		errors.As(err, &se)
		p.logger.Warn("rejecting malformed event",
			"key", key,
			"event_id", se.EventID,
			"event_type", se.EventType,
			"error", err)
		return p.deadLetter(ctx, DeadLetter{
			EventID:   se.EventID,
			EventType: se.EventType,
			Key:       key,
			Payload:   raw,
			Reason:    err.Error(),
		})
	}
	env.Key = key

	ctx = logger.WithEventID(ctx, p.logger, env.ID.String(), env.Type)
	log := logger.FromContext(ctx)

	handlers := p.router.Handlers(env.Name())
	if len(handlers) == 0 {
		log.Debug("no handlers subscribed, acknowledging")
		return nil
	}

	for i, h := range handlers {
		attempts, err := p.runHandler(ctx, h, env)
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error("handler failed, dead-lettering event",
			"handler_index", i,
			"attempts", attempts,
			"error", err)
		if fr, ok := h.(FailureReporter); ok {
			if repErr := fr.ReportFailure(ctx, env, err); repErr != nil {
				log.Error("failed to report handler failure", "handler_index", i, "error", repErr)
			}
		}
		if dlErr := p.deadLetter(ctx, DeadLetter{
			EventID:   env.ID.String(),
			EventType: env.Type,
			Key:       key,
			Payload:   raw,
			Reason:    err.Error(),
			Attempts:  attempts,
		}); dlErr != nil {
			return dlErr
		}
	}
	return nil
}

func (p *Processor) runHandler(ctx context.Context, h Handler, env *Envelope) (int, error) {
	attempts := 0
	err := retry.Do(ctx, p.policy.backoff(), func(ctx context.Context) error {
		attempts++
		err := h.HandleEvent(ctx, env)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) || IsSchemaError(err) {
			return err
		}
		logger.FromContext(ctx).Warn("handler attempt failed", "attempt", attempts, "error", err)
		return retry.RetryableError(err)
	})
	return attempts, err
}

func (p *Processor) deadLetter(ctx context.Context, dl DeadLetter) error {
	if dl.FailedAt.IsZero() {
		dl.FailedAt = p.now().UTC()
	}
	if err := p.sink.DeadLetter(ctx, dl); err != nil {
		return fmt.Errorf("failed to dead-letter event %s: %w", dl.EventID, err)
	}
	return nil
}
