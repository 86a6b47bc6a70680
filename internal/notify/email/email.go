// Package email delivers notifications through Amazon SES.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/emersion/go-message/mail"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify"
)

// API is the subset of the SES v2 client used by Channel.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Channel sends plain-text reminder emails as raw MIME messages.
type Channel struct {
	client API
	from   string
	logger *slog.Logger
	now    func() time.Time
}

var _ notify.Channel = (*Channel)(nil)

// New creates an email Channel sending from the given address.
func New(client API, from string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		client: client,
		from:   from,
		logger: logger.With(slog.String("component", "email_channel")),
		now:    time.Now,
	}
}

// NewClient builds an SES client from the email configuration.
func NewClient(ctx context.Context, cfg config.EmailConfig) (*sesv2.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Name implements notify.Channel.
func (c *Channel) Name() domain.Channel { return domain.ChannelEmail }

// Send implements notify.Channel.
func (c *Channel) Send(ctx context.Context, msg notify.Message) notify.Outcome {
	raw, err := c.compose(msg)
	if err != nil {
		c.logger.Error("failed to compose email",
			slog.String("notification_id", msg.NotificationID.String()),
			slog.String("error", err.Error()))
		return notify.Permanent(fmt.Errorf("failed to compose email: %w", err))
	}

	_, err = c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.Destination},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		out := classify(err)
		c.logger.Warn("email send failed",
			slog.String("notification_id", msg.NotificationID.String()),
			slog.String("outcome", out.Kind.String()),
			slog.String("error", err.Error()))
		return out
	}
	return notify.Delivered()
}

// compose renders msg as an RFC 5322 message. The Message-ID is derived
// from the notification id so that provider-side logs line up with events.
func (c *Channel) compose(msg notify.Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(c.now().UTC())
	h.SetAddressList("From", []*mail.Address{{Address: c.from}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.Destination}})
	h.SetSubject(msg.Subject())
	h.SetMessageID(msg.NotificationID.String() + "@taskpulse")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, msg.Text()+"\r\n"); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// classify maps SES errors onto outcomes. Rejections of the message or the
// sender identity are permanent; throttling and everything else is retried.
func classify(err error) notify.Outcome {
	var (
		rejected   *types.MessageRejected
		badRequest *types.BadRequestException
		unverified *types.MailFromDomainNotVerifiedException
		notFound   *types.NotFoundException
	)
	switch {
	case errors.As(err, &rejected),
		errors.As(err, &badRequest),
		errors.As(err, &unverified),
		errors.As(err, &notFound):
		return notify.Permanent(err)
	default:
		return notify.Transient(err)
	}
}
