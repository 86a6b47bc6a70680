// Package logger_test contains tests for the logger package
package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/TahaNadeemkhan/todo-app-sub001/internal/config"
	"github.com/TahaNadeemkhan/todo-app-sub001/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	l, err := logger.Setup(config.ServerConfig{LogLevel: "info", Port: 8080})

	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		want   slog.Level
		wantOK bool
	}{
		{name: "debug level", input: "debug", want: slog.LevelDebug, wantOK: true},
		{name: "info level", input: "info", want: slog.LevelInfo, wantOK: true},
		{name: "warn level", input: "warn", want: slog.LevelWarn, wantOK: true},
		{name: "error level", input: "error", want: slog.LevelError, wantOK: true},
		{name: "case insensitive - DEBUG", input: "DEBUG", want: slog.LevelDebug, wantOK: true},
		{name: "invalid falls back to info", input: "invalid_level", want: slog.LevelInfo, wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tc.input)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	buf := &logger.TestLogBuffer{}
	l := logger.New(buf, slog.LevelInfo)

	l.Debug("debug test message")
	l.Info("info test message")
	l.Error("error test message")

	out := buf.String()
	assert.NotContains(t, out, "debug test message")
	assert.Contains(t, out, "info test message")
	assert.Contains(t, out, "error test message")
}

func TestFromContextOrDefault(t *testing.T) {
	defaultLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	customLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{
			name:     "nil_context_returns_default",
			ctx:      nil,
			expected: defaultLogger,
		},
		{
			name:     "context_without_logger_returns_default",
			ctx:      context.Background(),
			expected: defaultLogger,
		},
		{
			name:     "context_with_logger_returns_context_logger",
			ctx:      logger.WithLogger(context.Background(), customLogger),
			expected: customLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.expected, logger.FromContextOrDefault(tt.ctx, defaultLogger))
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Run("valid_logger", func(t *testing.T) {
		customLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx := logger.WithLogger(context.Background(), customLogger)

		assert.Same(t, customLogger, logger.FromContext(ctx))
	})

	t.Run("nil_logger_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.WithLogger(context.Background(), nil)
		})
	})
}

func TestWithEventID(t *testing.T) {
	base, buf := logger.GetTestLogger(t)

	ctx := logger.WithEventID(context.Background(), base, "evt-1", "task.completed.v1")
	logger.FromContext(ctx).Info("handled")

	logger.AssertLogField(t, buf, "event_id", "evt-1")
	logger.AssertLogField(t, buf, "event_type", "task.completed.v1")
	logger.AssertLogContains(t, buf, "handled")
}
