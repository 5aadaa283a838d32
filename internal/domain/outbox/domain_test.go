package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageTraceHeaders(t *testing.T) {
	m := Message{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	assert.Equal(t, map[string]string{"traceparent": m.Traceparent}, m.TraceHeaders())
	assert.Empty(t, Message{}.TraceHeaders())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "event", KindEvent.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
