package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/events"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/idempotency"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
)

// ErrNoDestination is the permanent failure for an owner without an address
// on the channel.
var ErrNoDestination = errors.New("no destination registered for channel")

// ErrChannelUnavailable is the permanent failure for a channel that is not
// configured on this instance.
var ErrChannelUnavailable = errors.New("channel not configured")

// Options configures delivery retries and throttling.
type Options struct {
	SendTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	// RatePerSec and RateBurst throttle sends per channel. Zero disables it.
	RatePerSec float64
	RateBurst  int
}

// OptionsFromConfig converts dispatcher configuration.
func OptionsFromConfig(cfg config.DispatcherConfig) Options {
	return Options{
		SendTimeout: cfg.SendTimeout,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxAttempts: cfg.MaxAttempts,
		RatePerSec:  cfg.RatePerSec,
		RateBurst:   cfg.RateBurst,
	}
}

// Dispatcher handles reminder.due events.
type Dispatcher struct {
	ledger    idempotency.Ledger
	contacts  ContactResolver
	publisher events.Publisher
	channels  map[domain.Channel]Channel
	limiters  map[domain.Channel]*rate.Limiter
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

var _ events.Handler = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher delivering through channels. Result
// events are published through publisher.
func NewDispatcher(
	ledger idempotency.Ledger,
	contacts ContactResolver,
	publisher events.Publisher,
	opts Options,
	logger *slog.Logger,
	channels ...Channel,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	d := &Dispatcher{
		ledger:    ledger,
		contacts:  contacts,
		publisher: publisher,
		channels:  make(map[domain.Channel]Channel, len(channels)),
		limiters:  make(map[domain.Channel]*rate.Limiter, len(channels)),
		opts:      opts,
		logger:    logger.With(slog.String("component", "notification_dispatcher")),
		now:       time.Now,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
		if opts.RatePerSec > 0 {
			burst := opts.RateBurst
			if burst < 1 {
				burst = 1
			}
			d.limiters[ch.Name()] = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
		}
	}
	return d
}

// NotificationID derives the notification id from the claim key, so the
// same (event, channel) pair always yields the same id.
func NotificationID(eventID uuid.UUID, ch domain.Channel) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(claimKey(eventID, ch)))
}

func claimKey(eventID uuid.UUID, ch domain.Channel) string {
	return eventID.String() + ":" + string(ch)
}

// HandleEvent implements events.Handler for reminder.due events.
func (d *Dispatcher) HandleEvent(ctx context.Context, env *events.Envelope) error {
	var p events.ReminderDuePayload
	if err := env.UnmarshalData(&p); err != nil {
		return events.Permanent(fmt.Errorf("failed to decode reminder.due payload: %w", err))
	}
	lead, err := p.LeadTime()
	if err != nil {
		return events.Permanent(err)
	}

	for _, name := range p.Channels {
		ch := domain.Channel(name)
		msg := Message{
			NotificationID: NotificationID(env.ID, ch),
			EventID:        env.ID,
			ReminderID:     p.ReminderID,
			TaskID:         p.TaskID,
			OwnerID:        p.OwnerID,
			Channel:        ch,
			TaskTitle:      p.TaskTitle,
			DueAt:          p.DueAt,
			LeadTime:       lead,
		}
		if err := d.dispatch(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) error {
	log := logger.FromContextOrDefault(ctx, d.logger).With(
		slog.String("channel", string(msg.Channel)),
		slog.String("owner_id", msg.OwnerID),
		slog.String("notification_id", msg.NotificationID.String()))
	key := claimKey(msg.EventID, msg.Channel)

	if err := idempotency.Claim(ctx, d.ledger, key, idempotency.GroupDispatcher); err != nil {
		if errors.Is(err, idempotency.ErrDuplicate) {
			log.Debug("notification already dispatched, skipping")
			return nil
		}
		return fmt.Errorf("failed to claim %s: %w", key, err)
	}

	outcome, attempts := d.deliver(ctx, msg)

	if outcome.Kind != KindDelivered && ctx.Err() != nil {
		// Released so a redelivery can try again.
		if err := d.ledger.Release(context.WithoutCancel(ctx), key, idempotency.GroupDispatcher); err != nil {
			log.Error("failed to release claim after cancellation", slog.String("error", err.Error()))
		}
		return ctx.Err()
	}

	var env *events.Envelope
	var err error
	now := d.now().UTC()
	switch outcome.Kind {
	case KindDelivered:
		log.Info("notification delivered", slog.Int("attempts", attempts))
		env, err = events.NewEnvelope(events.NotificationSent, msg.OwnerID, events.NotificationSentPayload{
			NotificationID: msg.NotificationID,
			OwnerID:        msg.OwnerID,
			TaskID:         msg.TaskID,
			Channel:        string(msg.Channel),
			Message:        msg.Text(),
			SentAt:         now,
		})
	default:
		log.Warn("notification failed",
			slog.String("outcome", outcome.Kind.String()),
			slog.Int("attempts", attempts),
			slog.String("error", outcome.Err.Error()))
		env, err = events.NewEnvelope(events.NotificationFailed, msg.OwnerID, events.NotificationFailedPayload{
			NotificationID: msg.NotificationID,
			OwnerID:        msg.OwnerID,
			TaskID:         msg.TaskID,
			Channel:        string(msg.Channel),
			Message:        msg.Text(),
			Error:          outcome.Err.Error(),
			FailedAt:       now,
		})
	}
	if err != nil {
		return err
	}
	return d.publishResult(ctx, log, env)
}

// publishResult publishes the outcome event until it succeeds or ctx ends.
// The claim is already held, so a redelivery would skip the send and never
// report it.
func (d *Dispatcher) publishResult(ctx context.Context, log *slog.Logger, env *events.Envelope) error {
	b := retry.NewExponential(d.opts.BaseDelay)
	if d.opts.MaxDelay > 0 {
		b = retry.WithCappedDuration(d.opts.MaxDelay, b)
	}

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := d.publisher.Publish(ctx, env); err != nil {
			log.Warn("failed to publish notification result, retrying",
				slog.String("event_type", env.Type),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		log.Error("notification result lost",
			slog.String("event_id", env.ID.String()),
			slog.String("event_type", env.Type),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to publish %s: %w", env.Type, err)
	}
	return nil
}

// deliver resolves the destination and sends with retries. It returns the
// final outcome and how many sends were attempted.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) (Outcome, int) {
	ch, ok := d.channels[msg.Channel]
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrChannelUnavailable, msg.Channel)), 0
	}

	var (
		last     Outcome
		attempts int
	)
	b := retry.NewExponential(d.opts.BaseDelay)
	if d.opts.MaxDelay > 0 {
		b = retry.WithCappedDuration(d.opts.MaxDelay, b)
	}
	b = retry.WithMaxRetries(uint64(d.opts.MaxAttempts-1), b)

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if msg.Destination == "" {
			dest, err := d.contacts.Resolve(ctx, msg.OwnerID, msg.Channel)
			if err != nil {
				last = Transient(fmt.Errorf("failed to resolve contact: %w", err))
				return retry.RetryableError(last.Err)
			}
			if dest == "" {
				last = Permanent(ErrNoDestination)
				return last.Err
			}
			msg.Destination = dest
		}

		if lim := d.limiters[msg.Channel]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				last = Transient(err)
				return last.Err
			}
		}

		attempts++
		last = d.send(ctx, ch, msg)
		switch last.Kind {
		case KindDelivered:
			return nil
		case KindTransient:
			logger.FromContextOrDefault(ctx, d.logger).Debug("transient send failure",
				slog.String("channel", string(msg.Channel)),
				slog.Int("attempt", attempts),
				slog.String("error", last.Err.Error()))
			return retry.RetryableError(last.Err)
		default:
			return last.Err
		}
	})
	if err != nil && last.Kind == KindDelivered {
		// retry.Do stopped on ctx before the first attempt
		last = Transient(err)
	}
	return last, attempts
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, msg Message) Outcome {
	sendCtx := ctx
	if d.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()
	}
	out := ch.Send(sendCtx, msg)
	if out.Kind != KindDelivered && errors.Is(sendCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return Transient(fmt.Errorf("send timed out after %s: %w", d.opts.SendTimeout, sendCtx.Err()))
	}
	return out
}
