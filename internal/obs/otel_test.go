package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupOTel_Disabled(t *testing.T) {
	o, err := SetupOTel(context.Background(), &OTELConfig{})
	require.NoError(t, err)
	assert.Nil(t, o.TracerProvider)
	assert.NoError(t, o.Shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestSetupOTel_EnabledWithoutEndpoint(t *testing.T) {
	_, err := SetupOTel(context.Background(), &OTELConfig{Enable: true})
	assert.ErrorIs(t, err, ErrNoOTLPEndpoint)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
