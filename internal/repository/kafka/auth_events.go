package kafka

import (
	"context"

	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/kafka"
)

const DefaultAuthEventsTopic = "auth.events"

type AuthEventsKafka struct {
	p *Producer
}

func NewAuthEventsKafka(p *Producer) *AuthEventsKafka { return &AuthEventsKafka{p: p} }

var _ kafka.AuthEvents = (*AuthEventsKafka)(nil)

// PublishAuthEvent keys by user so one user's events stay ordered.
func (e *AuthEventsKafka) PublishAuthEvent(ctx context.Context, ev domainauth.Event) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.UserID), ev)
}
