// Package push delivers notifications through an HTTP push gateway that
// authenticates callers with short-lived HS256 bearer tokens.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify"
)

const tokenLifetime = 5 * time.Minute

// request is the gateway's JSON body.
type request struct {
	NotificationID string `json:"notification_id"`
	Token          string `json:"token"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// Channel posts notifications to the push gateway.
type Channel struct {
	client     *http.Client
	gatewayURL string
	signingKey []byte
	issuer     string
	logger     *slog.Logger
	now        func() time.Time
}

var _ notify.Channel = (*Channel)(nil)

// New creates a push Channel. A nil client uses http.DefaultClient; the
// dispatcher bounds every send with its own timeout.
func New(cfg config.PushConfig, client *http.Client, logger *slog.Logger) *Channel {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		client:     client,
		gatewayURL: cfg.GatewayURL,
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		logger:     logger.With(slog.String("component", "push_channel")),
		now:        time.Now,
	}
}

// Name implements notify.Channel.
func (c *Channel) Name() domain.Channel { return domain.ChannelPush }

// Send implements notify.Channel.
func (c *Channel) Send(ctx context.Context, msg notify.Message) notify.Outcome {
	token, err := c.signToken(msg)
	if err != nil {
		return notify.Permanent(fmt.Errorf("failed to sign gateway token: %w", err))
	}

	body, err := json.Marshal(request{
		NotificationID: msg.NotificationID.String(),
		Token:          msg.Destination,
		Title:          msg.Subject(),
		Body:           msg.Text(),
	})
	if err != nil {
		return notify.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return notify.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", msg.NotificationID.String())

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("push gateway unreachable",
			slog.String("notification_id", msg.NotificationID.String()),
			slog.String("error", err.Error()))
		return notify.Transient(fmt.Errorf("push gateway request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	out := classify(resp.StatusCode, bytes.TrimSpace(detail))
	if out.Kind != notify.KindDelivered {
		c.logger.Warn("push send failed",
			slog.String("notification_id", msg.NotificationID.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("outcome", out.Kind.String()))
	}
	return out
}

func (c *Channel) signToken(msg notify.Message) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   msg.OwnerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		ID:        msg.NotificationID.String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
}

// classify maps gateway status codes onto outcomes. Unknown tokens and
// malformed requests are permanent; throttling and server errors are
// retried.
func classify(status int, detail []byte) notify.Outcome {
	switch {
	case status >= 200 && status < 300:
		return notify.Delivered()
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return notify.Transient(fmt.Errorf("push gateway returned %d: %s", status, detail))
	default:
		return notify.Permanent(fmt.Errorf("push gateway returned %d: %s", status, detail))
	}
}
