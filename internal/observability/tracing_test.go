package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "chopmeet-service", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	// The exporter dials lazily, so setup must succeed without a
	// collector listening. A schema mismatch between the default
	// resource and the service attributes would surface here.
	shutdown, err := SetupTracing(context.Background(), "chopmeet-service", "localhost:4317")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
