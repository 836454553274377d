// Package outbox defines the transactional outbox: messages written in the
// same transaction as the state change that produced them and delivered
// later by a relay.
package outbox

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	// StatusFailed is terminal: the message can never be delivered and is
	// not picked again.
	StatusFailed Status = "FAILED"
)

// Kind selects the handler that delivers a message.
type Kind int

const (
	KindAuthEvent Kind = 1
)

// W3C trace propagation keys stored next to each message.
const (
	HeaderTraceparent = "traceparent"
	HeaderTracestate  = "tracestate"
	HeaderBaggage     = "baggage"
)

type Message struct {
	IdempotencyKey string
	Kind           Kind
	Data           []byte
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Traceparent    string
	Tracestate     string
	Baggage        string
}

// TraceHeaders returns the stored trace context in carrier form.
func (m Message) TraceHeaders() map[string]string {
	return map[string]string{
		HeaderTraceparent: m.Traceparent,
		HeaderTracestate:  m.Tracestate,
		HeaderBaggage:     m.Baggage,
	}
}

// SetTraceHeaders copies the known trace keys from h; other keys are ignored.
func (m *Message) SetTraceHeaders(h map[string]string) {
	m.Traceparent = h[HeaderTraceparent]
	m.Tracestate = h[HeaderTracestate]
	m.Baggage = h[HeaderBaggage]
}

type Repository interface {
	// Enqueue is a no-op when key already exists.
	Enqueue(ctx context.Context, key string, kind Kind, data []byte) error

	// PickBatch claims up to batch messages that are new or whose claim is
	// older than inProgressTTL.
	PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]Message, error)

	MarkSuccess(ctx context.Context, keys []string) error

	MarkFailed(ctx context.Context, keys []string) error
}

type KindHandler func(ctx context.Context, data []byte) error

type GlobalHandler func(kind Kind) (KindHandler, error)
