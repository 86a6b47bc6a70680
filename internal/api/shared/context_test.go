package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	traced := SetTraceID(ctx)
	id := GetTraceID(traced)
	_, err := uuid.Parse(id)
	require.NoError(t, err, "trace ID should be a UUID")

	assert.Empty(t, GetTraceID(ctx), "parent context must be unchanged")
	assert.NotEqual(t, id, GetTraceID(SetTraceID(ctx)), "each call gets a fresh ID")
}

func TestGetTraceIDWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}
