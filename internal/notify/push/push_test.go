package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/domain"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/notify"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
)

const testSecret = "thisisasecretkeythatis32charslong!!"

func testMessage() notify.Message {
	return notify.Message{
		NotificationID: uuid.New(),
		OwnerID:        "user-1",
		Channel:        domain.ChannelPush,
		Destination:    "device-token-abc",
		TaskTitle:      "Standup",
		DueAt:          time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newChannel(url string) *Channel {
	return New(config.PushConfig{
		Enabled:    true,
		GatewayURL: url,
		JWTSecret:  testSecret,
		Issuer:     "taskpulse",
	}, nil, nil)
}

func TestSendDelivers(t *testing.T) {
	msg := testMessage()
	var got request
	var claims jwt.RegisteredClaims

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, msg.NotificationID.String(), r.Header.Get("Idempotency-Key"))

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(testSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		assert.NoError(t, err)

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := newChannel(srv.URL).Send(context.Background(), msg)

	require.Equal(t, notify.KindDelivered, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "device-token-abc", got.Token)
	assert.Equal(t, "Reminder: Standup", got.Title)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "taskpulse", claims.Issuer)
	assert.Equal(t, msg.NotificationID.String(), claims.ID)
}

func TestSendClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   notify.Kind
	}{
		{status: http.StatusOK, want: notify.KindDelivered},
		{status: http.StatusBadRequest, want: notify.KindPermanent},
		{status: http.StatusNotFound, want: notify.KindPermanent},
		{status: http.StatusGone, want: notify.KindPermanent},
		{status: http.StatusTooManyRequests, want: notify.KindTransient},
		{status: http.StatusBadGateway, want: notify.KindTransient},
		{status: http.StatusServiceUnavailable, want: notify.KindTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("detail"))
			}))
			defer srv.Close()

			out := newChannel(srv.URL).Send(context.Background(), testMessage())
			assert.Equal(t, tt.want, out.Kind)
		})
	}
}

func TestSendNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := newChannel(url).Send(context.Background(), testMessage())

	assert.Equal(t, notify.KindTransient, out.Kind)
}

func TestSendLogsRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()
	log, buf := logger.GetTestLogger(t)
	ch := New(config.PushConfig{Enabled: true, GatewayURL: srv.URL, JWTSecret: testSecret, Issuer: "taskpulse"}, nil, log)

	out := ch.Send(context.Background(), testMessage())

	assert.Equal(t, notify.KindPermanent, out.Kind)
	logger.AssertLogContains(t, buf, "push send failed")
	logger.AssertLogField(t, buf, "status", float64(http.StatusGone))
}
