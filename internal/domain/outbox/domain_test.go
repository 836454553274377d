package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceHeadersRoundTrip(t *testing.T) {
	var m Message
	m.SetTraceHeaders(map[string]string{
		HeaderTraceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
		HeaderBaggage:     "user=42",
		"x-other":         "ignored",
	})

	assert.Equal(t, "user=42", m.Baggage)
	assert.Empty(t, m.Tracestate)

	h := m.TraceHeaders()
	assert.Len(t, h, 3)
	assert.Equal(t, m.Traceparent, h[HeaderTraceparent])
	assert.NotContains(t, h, "x-other")
}
