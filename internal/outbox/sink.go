package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
	"github.com/NordCoder/Tokengate/internal/domain/outbox"
	"github.com/NordCoder/Tokengate/internal/obs"
)

// Sink stores auth events in the outbox table. Called inside the caller's
// transaction, the event commits or rolls back with the state change.
type Sink struct {
	repo  outbox.Repository
	newID func() string
}

func NewSink(repo outbox.Repository) *Sink {
	return &Sink{repo: repo, newID: uuid.NewString}
}

func (s *Sink) Publish(ctx context.Context, ev domainauth.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal auth event: %w", err)
	}
	if err := s.repo.Enqueue(ctx, s.newID(), outbox.KindAuthEvent, data); err != nil {
		return fmt.Errorf("enqueue auth event: %w", err)
	}
	return nil
}

// LogSink writes events to the log. Used when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Publish(ctx context.Context, ev domainauth.Event) error {
	obs.WithTrace(ctx, s.log).Info("auth event",
		zap.String("kind", string(ev.Kind)),
		zap.Int64("user_id", ev.UserID),
		zap.String("username", ev.Username),
		zap.Time("at", ev.At),
	)
	return nil
}
