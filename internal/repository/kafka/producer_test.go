package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestAuthEventsKafka_Publish(t *testing.T) {
	w := &memWriter{}
	ev := NewAuthEventsKafka(newProducer(w, DefaultAuthEventsTopic))
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ev.PublishAuthEvent(context.Background(), domainauth.Event{
		Kind: domainauth.EventLoginSucceeded, UserID: 42, Username: "alice", At: at,
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("42"), w.msgs[0].Key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "login_succeeded", got["kind"])
	assert.Equal(t, float64(42), got["user_id"])
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "2026-05-01T10:00:00Z", got["at"])
}

func TestProducer_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&memWriter{err: boom}, "t")
	assert.ErrorIs(t, p.PublishJSON(context.Background(), nil, map[string]int{"a": 1}), boom)
}

func TestJSONHandler(t *testing.T) {
	var seen domainauth.Event
	h := JSONHandler(func(_ context.Context, key []byte, ev domainauth.Event) error {
		seen = ev
		assert.Equal(t, []byte("7"), key)
		return nil
	})

	require.NoError(t, h(context.Background(), []byte("7"), []byte(`{"kind":"user_registered","user_id":7}`)))
	assert.Equal(t, domainauth.EventUserRegistered, seen.Kind)
	assert.Equal(t, int64(7), seen.UserID)

	assert.Error(t, h(context.Background(), nil, []byte("not json")))
}

func TestHeaderCarrier(t *testing.T) {
	var hs []kafka.Header
	c := carrierFor(&hs)
	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-def-02")
	c.Set("baggage", "k=v")

	require.Len(t, hs, 2)
	assert.Equal(t, "00-abc-def-02", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
	assert.Empty(t, c.Get("missing"))
}
