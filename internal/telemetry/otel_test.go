package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupEnabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Endpoint: "http://127.0.0.1:4318", ServiceName: "tontine-test"})
	require.NoError(t, err)
	// Nothing was recorded, so flushing does not touch the network.
	assert.NoError(t, shutdown(context.Background()))
}
