package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/config"
)

func TestSetupTracing_Disabled(t *testing.T) {
	tracer, shutdown, err := setupTracing(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, tracer)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracing_Enabled(t *testing.T) {
	tracer, shutdown, err := setupTracing(context.Background(), config.TracingConfig{Endpoint: "127.0.0.1:4317", Insecure: true})
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "plancheck.test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// No collector listens; shutdown only has to return.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
