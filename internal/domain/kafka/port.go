package kafka

import (
	"context"

	"github.com/NordCoder/Tokengate/internal/domain/auth"
)

type AuthEvents interface {
	PublishAuthEvent(ctx context.Context, ev auth.Event) error
}
